package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"zimmet/internal/custody/models"
	"zimmet/internal/platform/postgres"
	id "zimmet/pkg/domain"
	"zimmet/pkg/platform/sentinel"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements the ledger store on PostgreSQL. Bound to *sql.DB it
// serves reads; bound to *sql.Tx it is the store of one unit of work.
type PostgresStore struct {
	db   dbtx
	inTx bool
}

// NewPostgres returns a store running each statement on its own.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx returns a store bound to tx. Row locks are taken for
// FindDocumentForUpdate.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx, inTx: true}
}

const pendingIndex = "custody_one_pending_per_document"

const documentColumns = `number, status, current_holder_id, archived_at, archived_by_user_id,
	archive_note, unarchived_at, unarchived_by_user_id, created_at`

const transactionColumns = `id, document_number, from_user_id, to_user_id, status, kind, note,
	created_at, resolved_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		d            models.Document
		status       string
		holder       uuid.NullUUID
		archivedAt   sql.NullTime
		archivedBy   uuid.NullUUID
		archiveNote  sql.NullString
		unarchivedAt sql.NullTime
		unarchivedBy uuid.NullUUID
	)
	if err := row.Scan(&d.Number, &status, &holder, &archivedAt, &archivedBy,
		&archiveNote, &unarchivedAt, &unarchivedBy, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Status = models.DocumentStatus(status)
	d.CurrentHolderID = userIDPtr(holder)
	d.ArchivedAt = timePtr(archivedAt)
	d.ArchivedByUserID = userIDPtr(archivedBy)
	d.ArchiveNote = archiveNote.String
	d.UnarchivedAt = timePtr(unarchivedAt)
	d.UnarchivedByUserID = userIDPtr(unarchivedBy)
	return &d, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t          models.Transaction
		txID       uuid.UUID
		from, to   uuid.UUID
		status     string
		kind       string
		note       sql.NullString
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&txID, &t.DocumentNumber, &from, &to, &status, &kind, &note,
		&t.CreatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	t.ID = id.TransactionID(txID)
	t.FromUserID = id.UserID(from)
	t.ToUserID = id.UserID(to)
	t.Status = models.Status(status)
	t.Kind = models.Kind(kind)
	t.Note = note.String
	t.ResolvedAt = timePtr(resolvedAt)
	return &t, nil
}

func (s *PostgresStore) FindDocument(ctx context.Context, number id.DocumentNumber) (*models.Document, error) {
	return s.findDocument(ctx, number, "")
}

func (s *PostgresStore) FindDocumentForUpdate(ctx context.Context, number id.DocumentNumber) (*models.Document, error) {
	lock := ""
	if s.inTx {
		lock = " FOR UPDATE"
	}
	return s.findDocument(ctx, number, lock)
}

func (s *PostgresStore) findDocument(ctx context.Context, number id.DocumentNumber, lock string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE number = $1` + lock
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, number.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

// FindOrCreateDocument inserts an ACTIVE holderless row unless one exists,
// then reads it back with a row lock when inside a transaction.
func (s *PostgresStore) FindOrCreateDocument(ctx context.Context, number id.DocumentNumber, now time.Time) (*models.Document, error) {
	doc, err := models.NewDocument(number, now)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (number, status, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (number) DO NOTHING
	`, doc.Number.String(), string(doc.Status), doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return s.FindDocumentForUpdate(ctx, number)
}

func (s *PostgresStore) SetHolder(ctx context.Context, number id.DocumentNumber, holder id.UserID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET current_holder_id = $2 WHERE number = $1`,
		number.String(), holder.String(),
	)
	if err != nil {
		return fmt.Errorf("set holder: %w", err)
	}
	return expectOne(res, sentinel.ErrNotFound)
}

func (s *PostgresStore) ArchiveDocument(ctx context.Context, doc *models.Document) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status = $2, archived_at = $3, archived_by_user_id = $4, archive_note = $5
		WHERE number = $1 AND status = $6
	`, doc.Number.String(), string(doc.Status), nullTime(doc.ArchivedAt), nullUserID(doc.ArchivedByUserID),
		doc.ArchiveNote, string(models.DocumentActive))
	if err != nil {
		return fmt.Errorf("archive document: %w", err)
	}
	return expectOne(res, sentinel.ErrInvalidState)
}

func (s *PostgresStore) UnarchiveDocument(ctx context.Context, doc *models.Document) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status = $2, unarchived_at = $3, unarchived_by_user_id = $4
		WHERE number = $1 AND status = $5
	`, doc.Number.String(), string(doc.Status), nullTime(doc.UnarchivedAt), nullUserID(doc.UnarchivedByUserID),
		string(models.DocumentArchived))
	if err != nil {
		return fmt.Errorf("unarchive document: %w", err)
	}
	return expectOne(res, sentinel.ErrInvalidState)
}

func (s *PostgresStore) ListHeldDocuments(ctx context.Context) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE status = $1 AND current_holder_id IS NOT NULL
		ORDER BY length(number), number
	`, string(models.DocumentActive))
	if err != nil {
		return nil, fmt.Errorf("list held documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendMarker(ctx context.Context, marker models.Marker) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_markers (document_number, marker_type, at, by_user_id, note)
		VALUES ($1, $2, $3, $4, $5)
	`, marker.DocumentNumber.String(), string(marker.Type), marker.At, marker.ByUserID.String(),
		sql.NullString{String: marker.Note, Valid: marker.Note != ""})
	if err != nil {
		return fmt.Errorf("append marker: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMarkers(ctx context.Context, number id.DocumentNumber) ([]models.Marker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_number, marker_type, at, by_user_id, note
		FROM document_markers
		WHERE document_number = $1
		ORDER BY at, id
	`, number.String())
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	defer rows.Close()

	var out []models.Marker
	for rows.Next() {
		var (
			m    models.Marker
			kind string
			by   uuid.UUID
			note sql.NullString
		)
		if err := rows.Scan(&m.DocumentNumber, &kind, &m.At, &by, &note); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		m.Type = models.MarkerType(kind)
		m.ByUserID = id.UserID(by)
		m.Note = note.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markers: %w", err)
	}
	return out, nil
}

// InsertTransaction maps a violation of the one-pending-per-document index to
// ErrConflict.
func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custody_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID.String(), tx.DocumentNumber.String(), tx.FromUserID.String(), tx.ToUserID.String(),
		string(tx.Status), string(tx.Kind), sql.NullString{String: tx.Note, Valid: tx.Note != ""},
		tx.CreatedAt, nullTime(tx.ResolvedAt))
	if postgres.IsUniqueViolation(err, pendingIndex) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindTransaction(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM custody_transactions WHERE id = $1`
	t, err := scanTransaction(s.db.QueryRowContext(ctx, query, txID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}

// UpdateTransactionStatus is the conditional write every transition goes
// through: zero affected rows means a concurrent writer got there first.
func (s *PostgresStore) UpdateTransactionStatus(ctx context.Context, tx *models.Transaction, from models.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE custody_transactions
		SET status = $2, resolved_at = COALESCE($3, resolved_at)
		WHERE id = $1 AND status = $4
	`, tx.ID.String(), string(tx.Status), nullTime(tx.ResolvedAt), string(from))
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return expectOne(res, sentinel.ErrInvalidState)
}

func (s *PostgresStore) HasPending(ctx context.Context, number id.DocumentNumber) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM custody_transactions WHERE document_number = $1 AND status = $2
		)
	`, number.String(), string(models.StatusPending)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, user id.UserID) ([]*models.Transaction, error) {
	return s.listTransactions(ctx, `WHERE from_user_id = $1 OR to_user_id = $1`, user.String())
}

func (s *PostgresStore) ListByDocument(ctx context.Context, number id.DocumentNumber) ([]*models.Transaction, error) {
	return s.listTransactions(ctx, `WHERE document_number = $1`, number.String())
}

func (s *PostgresStore) ListByDocuments(ctx context.Context, numbers []id.DocumentNumber) ([]*models.Transaction, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	raw := make([]string, len(numbers))
	for i, n := range numbers {
		raw[i] = n.String()
	}
	return s.listTransactions(ctx, `WHERE document_number = ANY($1::text[])`, pq.Array(raw))
}

func (s *PostgresStore) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Transaction, error) {
	return s.listTransactions(ctx, `WHERE status = $1 AND created_at < $2`, string(models.StatusPending), cutoff)
}

func (s *PostgresStore) listTransactions(ctx context.Context, where string, args ...any) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM custody_transactions ` + where + ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SeenMarks(ctx context.Context, user id.UserID) (models.SeenMarks, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT inbox, seen_at FROM inbox_seen WHERE user_id = $1`, user.String())
	if err != nil {
		return nil, fmt.Errorf("query seen marks: %w", err)
	}
	defer rows.Close()

	marks := make(models.SeenMarks)
	for rows.Next() {
		var (
			inbox string
			at    time.Time
		)
		if err := rows.Scan(&inbox, &at); err != nil {
			return nil, fmt.Errorf("scan seen mark: %w", err)
		}
		marks[models.Inbox(inbox)] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen marks: %w", err)
	}
	return marks, nil
}

// MarkSeen upserts the mark, never moving it backwards.
func (s *PostgresStore) MarkSeen(ctx context.Context, user id.UserID, inbox models.Inbox, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inbox_seen (user_id, inbox, seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, inbox) DO UPDATE
		SET seen_at = GREATEST(inbox_seen.seen_at, EXCLUDED.seen_at)
	`, user.String(), inbox.String(), at)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func expectOne(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

func userIDPtr(u uuid.NullUUID) *id.UserID {
	if !u.Valid {
		return nil
	}
	v := id.UserID(u.UUID)
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUserID(u *id.UserID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*u), Valid: true}
}
