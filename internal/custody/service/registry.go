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

// FindOrCreateDocument returns the registry record for number, creating an
// ACTIVE holderless record on first use.
func (s *Service) FindOrCreateDocument(ctx context.Context, documentNumber string) (*models.Document, error) {
	number, err := id.ParseDocumentNumber(documentNumber)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var doc *models.Document
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		found, err := store.FindOrCreateDocument(ctx, number, now)
		if err != nil {
			return storeError(err, "document not found")
		}
		doc = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument returns the registry record with its displayable holder.
func (s *Service) GetDocument(ctx context.Context, documentNumber string) (*models.DocumentDetail, error) {
	number, err := id.ParseDocumentNumber(documentNumber)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.FindDocument(ctx, number)
	if err != nil {
		return nil, storeError(err, "document not found")
	}
	detail := &models.DocumentDetail{Document: *doc}
	if holder := doc.ActiveHolder(); holder != nil {
		users, err := s.summaries(ctx, []id.UserID{*holder})
		if err != nil {
			return nil, err
		}
		summary, ok := users[*holder]
		if !ok {
			summary = models.UserSummary{ID: *holder}
		}
		detail.Holder = &summary
	}
	return detail, nil
}

// Archive retires a document. The holder pointer is kept but no longer shown
// as the active holder.
func (s *Service) Archive(ctx context.Context, documentNumber string, actor models.Actor, note string) (_ *models.Document, err error) {
	number, err := id.ParseDocumentNumber(documentNumber)
	if err != nil {
		return nil, err
	}
	ctx, done := s.begin(ctx, "archive", docAttr(number))
	defer func() { done(err) }()

	note, err = models.RequireNote(note)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var archived *models.Document
	var holder *id.UserID
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		doc, err := store.FindDocumentForUpdate(ctx, number)
		if err != nil {
			return storeError(err, "document not found")
		}
		if err := doc.CanArchive(); err != nil {
			return err
		}
		if !actor.Admin && !doc.IsHeldBy(actor.UserID) {
			return dErrors.New(dErrors.CodeForbidden, "only the holder or an admin can archive this document")
		}
		pending, err := store.HasPending(ctx, number)
		if err != nil {
			return storeError(err, "document not found")
		}
		if pending {
			return errPendingExists
		}

		holder = doc.ActiveHolder()
		doc.ApplyArchive(actor.UserID, note, now)
		if err := store.ArchiveDocument(ctx, doc); err != nil {
			return archiveStoreError(err, "document is already archived")
		}
		if err := store.AppendMarker(ctx, models.Marker{
			DocumentNumber: number,
			Type:           models.MarkerArchived,
			At:             now,
			ByUserID:       actor.UserID,
			Note:           note,
		}); err != nil {
			return storeError(err, "document not found")
		}
		archived = doc
		return s.appendEvent(ctx, audit.Event{
			Type:        audit.EventDocumentArchived,
			AggregateID: number.String(),
			ActorID:     actor.UserID,
			Status:      string(doc.Status),
			Note:        note,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "document archived",
		"document_number", number.String(),
		"user_id", actor.UserID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if holder != nil && *holder != actor.UserID {
		s.notify(ctx, *holder)
	}
	return archived, nil
}

// Unarchive returns an ARCHIVED document to ACTIVE. Admin only.
func (s *Service) Unarchive(ctx context.Context, documentNumber string, actor models.Actor) (_ *models.Document, err error) {
	number, err := id.ParseDocumentNumber(documentNumber)
	if err != nil {
		return nil, err
	}
	ctx, done := s.begin(ctx, "unarchive", docAttr(number))
	defer func() { done(err) }()

	if !actor.Admin {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
	}

	now := requestcontext.Now(ctx)
	var restored *models.Document
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		doc, err := store.FindDocumentForUpdate(ctx, number)
		if err != nil {
			return storeError(err, "document not found")
		}
		if err := doc.CanUnarchive(); err != nil {
			return err
		}
		doc.ApplyUnarchive(actor.UserID, now)
		if err := store.UnarchiveDocument(ctx, doc); err != nil {
			return archiveStoreError(err, "document is not archived")
		}
		if err := store.AppendMarker(ctx, models.Marker{
			DocumentNumber: number,
			Type:           models.MarkerUnarchived,
			At:             now,
			ByUserID:       actor.UserID,
		}); err != nil {
			return storeError(err, "document not found")
		}
		restored = doc
		return s.appendEvent(ctx, audit.Event{
			Type:        audit.EventDocumentUnarchived,
			AggregateID: number.String(),
			ActorID:     actor.UserID,
			Status:      string(doc.Status),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "document unarchived",
		"document_number", number.String(),
		"user_id", actor.UserID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if h := restored.ActiveHolder(); h != nil && *h != actor.UserID {
		s.notify(ctx, *h)
	}
	return restored, nil
}

// Timeline returns every ledger row of a document plus its registry markers,
// oldest first.
func (s *Service) Timeline(ctx context.Context, documentNumber string) ([]models.TimelineEntry, error) {
	number, err := id.ParseDocumentNumber(documentNumber)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.FindDocument(ctx, number); err != nil {
		return nil, storeError(err, "document not found")
	}
	rows, err := s.store.ListByDocument(ctx, number)
	if err != nil {
		return nil, storeError(err, "document not found")
	}
	markers, err := s.store.ListMarkers(ctx, number)
	if err != nil {
		return nil, storeError(err, "document not found")
	}
	models.SortOldestFirst(rows)

	users, err := s.summaries(ctx, models.PartyIDs(rows, markers, nil))
	if err != nil {
		return nil, err
	}
	return models.BuildTimeline(models.Enrich(rows, users), markers, users), nil
}

func archiveStoreError(err error, invalid string) error {
	if errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.New(dErrors.CodeValidation, invalid)
	}
	return storeError(err, "document not found")
}
