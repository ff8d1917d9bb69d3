package handler

import (
	"strings"
	"time"

	"zimmet/internal/custody/models"
	id "zimmet/pkg/domain"
)

type CreateCustodyRequest struct {
	DocumentNumber string `json:"documentNumber" validate:"required,max=64"`
	ToUserID       string `json:"toUserId" validate:"required"`
	Note           string `json:"note" validate:"max=1000"`

	toUser id.UserID
}

func (r *CreateCustodyRequest) Validate() error {
	r.DocumentNumber = strings.TrimSpace(r.DocumentNumber)
	userID, err := id.ParseUserID(strings.TrimSpace(r.ToUserID))
	if err != nil {
		return err
	}
	r.toUser = userID
	return nil
}

// NoteRequest carries the free text of return and archive actions. Blank
// notes are rejected by the service, not here.
type NoteRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

type UnreadResponse struct {
	models.UnreadCounts
	Total int `json:"total"`
}

type OverdueResponse struct {
	ThresholdMinutes int                  `json:"thresholdMinutes"`
	Items            []models.OverdueItem `json:"items"`
}

func newOverdueResponse(threshold time.Duration, items []models.OverdueItem) OverdueResponse {
	if items == nil {
		items = []models.OverdueItem{}
	}
	return OverdueResponse{ThresholdMinutes: int(threshold / time.Minute), Items: items}
}
