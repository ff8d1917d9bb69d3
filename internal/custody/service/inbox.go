package service

import (
	"context"

	"zimmet/internal/custody/models"
	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
	"zimmet/pkg/requestcontext"
)

// MyTransactions lists every ledger row the user is a party to, newest first.
func (s *Service) MyTransactions(ctx context.Context, user id.UserID) ([]models.TransactionView, error) {
	rows, err := s.store.ListByUser(ctx, user)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	models.SortNewestFirst(rows)
	users, err := s.summaries(ctx, models.PartyIDs(rows, nil, nil))
	if err != nil {
		return nil, err
	}
	return models.Enrich(rows, users), nil
}

// Unread computes the three badge counters for user.
func (s *Service) Unread(ctx context.Context, user id.UserID) (models.UnreadCounts, error) {
	rows, err := s.store.ListByUser(ctx, user)
	if err != nil {
		return models.UnreadCounts{}, storeError(err, "user not found")
	}
	seen, err := s.store.SeenMarks(ctx, user)
	if err != nil {
		return models.UnreadCounts{}, storeError(err, "user not found")
	}
	return models.CountUnread(rows, user, seen), nil
}

// MarkSeen stamps one inbox as seen now. Other inboxes are untouched and
// repeating the call is harmless.
func (s *Service) MarkSeen(ctx context.Context, user id.UserID, inbox string) error {
	parsed, err := models.ParseInbox(inbox)
	if err != nil {
		return err
	}
	if err := s.store.MarkSeen(ctx, user, parsed, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark inbox seen")
	}
	s.logger.DebugContext(ctx, "inbox marked seen",
		"user_id", user.String(),
		"inbox", parsed.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}
