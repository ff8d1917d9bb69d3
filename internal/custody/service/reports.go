package service

import (
	"context"

	"zimmet/internal/custody/models"
	id "zimmet/pkg/domain"
	"zimmet/pkg/requestcontext"
)

// ActiveReport lists ACTIVE documents that have a holder, with the ACCEPTED
// row that put the holder in place when one exists.
func (s *Service) ActiveReport(ctx context.Context) ([]models.ActiveAssignment, error) {
	docs, err := s.store.ListHeldDocuments(ctx)
	if err != nil {
		return nil, storeError(err, "document not found")
	}
	numbers := make([]id.DocumentNumber, 0, len(docs))
	for _, d := range docs {
		numbers = append(numbers, d.Number)
	}
	rows, err := s.store.ListByDocuments(ctx, numbers)
	if err != nil {
		return nil, storeError(err, "document not found")
	}
	users, err := s.summaries(ctx, models.PartyIDs(rows, nil, docs))
	if err != nil {
		return nil, err
	}

	out := make([]models.ActiveAssignment, 0, len(docs))
	for _, d := range docs {
		holder := d.ActiveHolder()
		if holder == nil {
			continue
		}
		item := models.ActiveAssignment{
			DocumentNumber: d.Number,
			Holder:         summary(users, *holder),
		}
		if t := models.LatestAcceptedInto(rows, d.Number, *holder); t != nil {
			since := t.CreatedAt
			if t.ResolvedAt != nil {
				since = *t.ResolvedAt
			}
			v := models.Enrich([]*models.Transaction{t}, users)[0]
			item.Since = &since
			item.Transaction = &v
		}
		out = append(out, item)
	}
	return out, nil
}

// OverdueReport lists PENDING rows older than the overdue threshold, oldest
// first.
func (s *Service) OverdueReport(ctx context.Context) ([]models.OverdueItem, error) {
	now := requestcontext.Now(ctx)
	rows, err := s.store.ListPendingCreatedBefore(ctx, now.Add(-s.overdueThreshold))
	if err != nil {
		return nil, storeError(err, "transaction not found")
	}
	overdue := rows[:0]
	for _, t := range rows {
		if models.IsOverdue(t, now, s.overdueThreshold) {
			overdue = append(overdue, t)
		}
	}
	models.SortOldestFirst(overdue)
	s.metrics.SetOverdue(len(overdue))

	users, err := s.summaries(ctx, models.PartyIDs(overdue, nil, nil))
	if err != nil {
		return nil, err
	}
	views := models.Enrich(overdue, users)
	out := make([]models.OverdueItem, 0, len(views))
	for _, v := range views {
		out = append(out, models.OverdueItem{
			TransactionView: v,
			OverdueMinutes:  models.ElapsedMinutes(v.CreatedAt, now),
		})
	}
	return out, nil
}

// HoldingsReport groups ACTIVE held documents per holder.
func (s *Service) HoldingsReport(ctx context.Context) ([]models.Holding, error) {
	docs, err := s.store.ListHeldDocuments(ctx)
	if err != nil {
		return nil, storeError(err, "document not found")
	}
	users, err := s.summaries(ctx, models.PartyIDs(nil, nil, docs))
	if err != nil {
		return nil, err
	}
	return models.GroupHoldings(docs, users), nil
}

func summary(users map[id.UserID]models.UserSummary, uid id.UserID) models.UserSummary {
	if u, ok := users[uid]; ok {
		return u
	}
	return models.UserSummary{ID: uid}
}
