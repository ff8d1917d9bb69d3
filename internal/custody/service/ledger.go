package service

import (
	"context"
	"errors"

	"zimmet/internal/custody/models"
	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
	"zimmet/pkg/platform/audit"
	"zimmet/pkg/platform/sentinel"
	"zimmet/pkg/requestcontext"
)

// CreateCustody offers custody of a document to another user. The document is
// created on first use. A document may have only one PENDING row at a time.
func (s *Service) CreateCustody(ctx context.Context, documentNumber string, toUserID, fromUserID id.UserID, note string) (_ *models.TransactionView, err error) {
	ctx, done := s.begin(ctx, "create")
	defer func() { done(err) }()

	number, err := id.ParseDocumentNumber(documentNumber)
	if err != nil {
		return nil, err
	}
	if toUserID == fromUserID {
		return nil, dErrors.New(dErrors.CodeValidation, "cannot assign to self")
	}
	note = models.NormalizeNote(note)
	if len(note) > models.MaxNoteLength {
		return nil, dErrors.New(dErrors.CodeValidation, "note is too long")
	}

	target, err := s.users.FindParty(ctx, toUserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "target user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load target user")
	}
	if !target.Active {
		return nil, dErrors.New(dErrors.CodeValidation, "target user is inactive")
	}

	now := requestcontext.Now(ctx)
	var created *models.Transaction
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		doc, err := store.FindOrCreateDocument(ctx, number, now)
		if err != nil {
			return storeError(err, "document not found")
		}
		if doc.IsArchived() {
			return dErrors.New(dErrors.CodeValidation, "document is archived")
		}
		pending, err := store.HasPending(ctx, number)
		if err != nil {
			return storeError(err, "document not found")
		}
		if pending {
			return errPendingExists
		}

		tx, err := models.NewTransaction(id.NewTransactionID(), number, fromUserID, toUserID, models.KindNormal, note, now)
		if err != nil {
			return invariantToValidation(err)
		}
		if err := store.InsertTransaction(ctx, tx); err != nil {
			return storeError(err, "document not found")
		}
		created = tx
		return s.appendEvent(ctx, audit.Event{
			Type:          audit.EventCustodyCreated,
			AggregateID:   number.String(),
			TransactionID: tx.ID.String(),
			ActorID:       fromUserID,
			FromUserID:    fromUserID,
			ToUserID:      toUserID,
			Status:        tx.Status.String(),
			Note:          note,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "custody created",
		"document_number", number.String(),
		"transaction_id", created.ID.String(),
		"user_id", fromUserID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notify(ctx, toUserID)
	return s.view(ctx, created)
}

// Accept resolves a PENDING row in favour of its addressee, who becomes the
// document holder. Works for NORMAL offers and RETURN_REQUEST rows alike.
func (s *Service) Accept(ctx context.Context, txID id.TransactionID, actor id.UserID) (*models.TransactionView, error) {
	return s.resolve(ctx, "accept", txID, actor, models.StatusAccepted, audit.EventCustodyAccepted)
}

// Reject declines a PENDING row. The holder pointer does not move.
func (s *Service) Reject(ctx context.Context, txID id.TransactionID, actor id.UserID) (*models.TransactionView, error) {
	return s.resolve(ctx, "reject", txID, actor, models.StatusRejected, audit.EventCustodyRejected)
}

// Cancel withdraws a PENDING row. Only the sender may cancel.
func (s *Service) Cancel(ctx context.Context, txID id.TransactionID, actor id.UserID) (*models.TransactionView, error) {
	return s.resolve(ctx, "cancel", txID, actor, models.StatusCancelled, audit.EventCustodyCancelled)
}

func (s *Service) resolve(
	ctx context.Context,
	op string,
	txID id.TransactionID,
	actor id.UserID,
	next models.Status,
	eventType audit.EventType,
) (_ *models.TransactionView, err error) {
	ctx, done := s.begin(ctx, op, txAttr(txID))
	defer func() { done(err) }()

	now := requestcontext.Now(ctx)
	var resolved *models.Transaction
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		tx, err := store.FindTransaction(ctx, txID)
		if err != nil {
			return storeError(err, "transaction not found")
		}
		if err := authorizeResolution(tx, actor, next); err != nil {
			return err
		}
		if err := tx.CanTransitionTo(next); err != nil {
			return err
		}

		tx.ApplyTransition(next, now)
		if err := store.UpdateTransactionStatus(ctx, tx, models.StatusPending); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeValidation, "transaction is not pending")
			}
			return storeError(err, "transaction not found")
		}
		if next == models.StatusAccepted {
			if err := assignHolder(ctx, store, tx.DocumentNumber, actor); err != nil {
				return err
			}
		}
		resolved = tx
		return s.appendEvent(ctx, audit.Event{
			Type:          eventType,
			AggregateID:   tx.DocumentNumber.String(),
			TransactionID: tx.ID.String(),
			ActorID:       actor,
			FromUserID:    tx.FromUserID,
			ToUserID:      tx.ToUserID,
			Status:        tx.Status.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "custody "+op,
		"document_number", resolved.DocumentNumber.String(),
		"transaction_id", resolved.ID.String(),
		"status", resolved.Status.String(),
		"user_id", actor.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notify(ctx, resolved.Counterpart(actor))
	return s.view(ctx, resolved)
}

// authorizeResolution enforces who may move a PENDING row: the addressee
// accepts or rejects, the sender cancels.
func authorizeResolution(tx *models.Transaction, actor id.UserID, next models.Status) error {
	switch next {
	case models.StatusCancelled:
		if !tx.IsSender(actor) {
			return dErrors.New(dErrors.CodeForbidden, "only the sender can cancel this transaction")
		}
	default:
		if !tx.IsAddressee(actor) {
			return dErrors.New(dErrors.CodeForbidden, "only the addressee can "+verb(next)+" this transaction")
		}
	}
	return nil
}

func verb(next models.Status) string {
	if next == models.StatusRejected {
		return "reject"
	}
	return "accept"
}

// assignHolder is the only writer of Document.CurrentHolderID.
func assignHolder(ctx context.Context, store Store, number id.DocumentNumber, holder id.UserID) error {
	if err := store.SetHolder(ctx, number, holder); err != nil {
		return storeError(err, "document not found")
	}
	return nil
}

// ReturnBack hands an accepted document back to the user who sent it. The
// accepted row becomes RETURNED and a new PENDING RETURN_REQUEST row flows
// from the returner to the original sender.
func (s *Service) ReturnBack(ctx context.Context, txID id.TransactionID, actor id.UserID, note string) (_ *models.TransactionView, err error) {
	ctx, done := s.begin(ctx, "return", txAttr(txID))
	defer func() { done(err) }()

	now := requestcontext.Now(ctx)
	var request *models.Transaction
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		orig, err := store.FindTransaction(ctx, txID)
		if err != nil {
			return storeError(err, "transaction not found")
		}
		if !orig.IsAddressee(actor) {
			return dErrors.New(dErrors.CodeForbidden, "only the addressee can return this transaction")
		}
		if err := orig.CanTransitionTo(models.StatusReturned); err != nil {
			return err
		}
		note, err = models.RequireNote(note)
		if err != nil {
			return err
		}

		doc, err := store.FindDocumentForUpdate(ctx, orig.DocumentNumber)
		if err != nil {
			return storeError(err, "document not found")
		}
		if doc.IsArchived() {
			return dErrors.New(dErrors.CodeValidation, "document is archived")
		}
		if !doc.IsHeldBy(actor) {
			return dErrors.New(dErrors.CodeForbidden, "only the current holder can return this document")
		}

		sender, err := s.users.FindParty(ctx, orig.FromUserID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load original sender")
		}
		if sender == nil || !sender.Active {
			return dErrors.New(dErrors.CodeValidation, "original sender is inactive")
		}

		orig.ApplyTransition(models.StatusReturned, now)
		if err := store.UpdateTransactionStatus(ctx, orig, models.StatusAccepted); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeValidation, "transaction is not accepted")
			}
			return storeError(err, "transaction not found")
		}

		req, err := orig.ReturnRequest(id.NewTransactionID(), note, now)
		if err != nil {
			return invariantToValidation(err)
		}
		if err := store.InsertTransaction(ctx, req); err != nil {
			return storeError(err, "document not found")
		}
		request = req
		return s.appendEvent(ctx, audit.Event{
			Type:          audit.EventCustodyReturned,
			AggregateID:   orig.DocumentNumber.String(),
			TransactionID: req.ID.String(),
			ActorID:       actor,
			FromUserID:    req.FromUserID,
			ToUserID:      req.ToUserID,
			Status:        req.Status.String(),
			Note:          note,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "custody returned",
		"document_number", request.DocumentNumber.String(),
		"transaction_id", txID.String(),
		"return_transaction_id", request.ID.String(),
		"user_id", actor.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notify(ctx, request.ToUserID)
	return s.view(ctx, request)
}
