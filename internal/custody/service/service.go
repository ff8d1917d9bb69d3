package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"zimmet/internal/custody/metrics"
	"zimmet/internal/custody/models"
	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
	"zimmet/pkg/platform/audit"
	"zimmet/pkg/platform/sentinel"
	"zimmet/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserDirectory,Notifier

// Store is the ledger and registry persistence port. Implementations return
// sentinel errors: ErrNotFound, ErrConflict (second PENDING row for a
// document), ErrInvalidState (conditional update matched nothing).
type Store interface {
	FindDocument(ctx context.Context, number id.DocumentNumber) (*models.Document, error)
	FindDocumentForUpdate(ctx context.Context, number id.DocumentNumber) (*models.Document, error)
	FindOrCreateDocument(ctx context.Context, number id.DocumentNumber, now time.Time) (*models.Document, error)
	SetHolder(ctx context.Context, number id.DocumentNumber, holder id.UserID) error
	ArchiveDocument(ctx context.Context, doc *models.Document) error
	UnarchiveDocument(ctx context.Context, doc *models.Document) error
	ListHeldDocuments(ctx context.Context) ([]*models.Document, error)
	AppendMarker(ctx context.Context, marker models.Marker) error
	ListMarkers(ctx context.Context, number id.DocumentNumber) ([]models.Marker, error)

	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	FindTransaction(ctx context.Context, txID id.TransactionID) (*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, tx *models.Transaction, from models.Status) error
	HasPending(ctx context.Context, number id.DocumentNumber) (bool, error)
	ListByUser(ctx context.Context, user id.UserID) ([]*models.Transaction, error)
	ListByDocument(ctx context.Context, number id.DocumentNumber) ([]*models.Transaction, error)
	ListByDocuments(ctx context.Context, numbers []id.DocumentNumber) ([]*models.Transaction, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Transaction, error)

	SeenMarks(ctx context.Context, user id.UserID) (models.SeenMarks, error)
	MarkSeen(ctx context.Context, user id.UserID, inbox models.Inbox, at time.Time) error
}

// UserDirectory resolves ledger parties. FindParty returns sentinel.ErrNotFound
// for unknown ids.
type UserDirectory interface {
	FindParty(ctx context.Context, userID id.UserID) (*models.Party, error)
	Summaries(ctx context.Context, ids []id.UserID) (map[id.UserID]models.UserSummary, error)
}

// Notifier wakes the given users' sessions. Called after commit; errors are
// logged and never change an operation's outcome.
type Notifier interface {
	Notify(ctx context.Context, userIDs []id.UserID) error
}

// Service implements the custody ledger, the document registry operations
// and the read models derived from them.
type Service struct {
	store            Store
	tx               LedgerTx
	users            UserDirectory
	notifier         Notifier
	events           audit.Store
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
	overdueThreshold time.Duration
}

// DefaultOverdueThreshold is how long a PENDING row may wait before it is overdue.
const DefaultOverdueThreshold = 15 * time.Minute

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithEvents appends ledger events inside each unit of work.
func WithEvents(events audit.Store) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithOverdueThreshold(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.overdueThreshold = d
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service. store serves reads outside a unit of work; tx
// scopes every mutation.
func New(store Store, tx LedgerTx, users UserDirectory, opts ...Option) *Service {
	s := &Service{
		store:            store,
		tx:               tx,
		users:            users,
		logger:           slog.Default(),
		tracer:           otel.Tracer("zimmet/custody"),
		overdueThreshold: DefaultOverdueThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OverdueThreshold returns the configured threshold.
func (s *Service) OverdueThreshold() time.Duration {
	return s.overdueThreshold
}

// begin opens a span and returns a finisher that records metrics and span status.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "custody."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.ObserveOperation(op, outcome, time.Since(start))
		span.End()
	}
}

// notify signals users after commit. Errors are swallowed.
func (s *Service) notify(ctx context.Context, users ...id.UserID) {
	if s.notifier == nil || len(users) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, users); err != nil {
		s.metrics.IncrementNotifyFailure()
		s.logger.WarnContext(ctx, "notification relay failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// appendEvent records a ledger event in the caller's unit of work.
func (s *Service) appendEvent(ctx context.Context, event audit.Event) error {
	if s.events == nil {
		return nil
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.Device = requestcontext.Device(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	if err := s.events.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record ledger event")
	}
	return nil
}

func (s *Service) summaries(ctx context.Context, ids []id.UserID) (map[id.UserID]models.UserSummary, error) {
	if len(ids) == 0 {
		return map[id.UserID]models.UserSummary{}, nil
	}
	users, err := s.users.Summaries(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user summaries")
	}
	return users, nil
}

func (s *Service) view(ctx context.Context, t *models.Transaction) (*models.TransactionView, error) {
	users, err := s.summaries(ctx, []id.UserID{t.FromUserID, t.ToUserID})
	if err != nil {
		return nil, err
	}
	v := models.Enrich([]*models.Transaction{t}, users)[0]
	return &v, nil
}

// storeError translates a store failure. Domain errors pass through.
func storeError(err error, notFound string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case errors.Is(err, sentinel.ErrConflict):
		return errPendingExists
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "ledger store failure")
	}
}

// invariantToValidation converts constructor invariant failures into input errors.
func invariantToValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

var errPendingExists = dErrors.New(dErrors.CodeConflict, "document has an outstanding custody transaction")

func docAttr(number id.DocumentNumber) attribute.KeyValue {
	return attribute.String("document.number", number.String())
}

func txAttr(txID id.TransactionID) attribute.KeyValue {
	return attribute.String("transaction.id", txID.String())
}
