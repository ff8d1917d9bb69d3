package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zimmet/internal/custody/models"
	id "zimmet/pkg/domain"
	"zimmet/pkg/platform/httputil"
	"zimmet/pkg/platform/middleware/admin"
	request "zimmet/pkg/platform/middleware/request"
	"zimmet/pkg/requestcontext"
)

// Service is the custody surface exposed over HTTP.
type Service interface {
	CreateCustody(ctx context.Context, documentNumber string, toUserID, fromUserID id.UserID, note string) (*models.TransactionView, error)
	Accept(ctx context.Context, txID id.TransactionID, actor id.UserID) (*models.TransactionView, error)
	Reject(ctx context.Context, txID id.TransactionID, actor id.UserID) (*models.TransactionView, error)
	Cancel(ctx context.Context, txID id.TransactionID, actor id.UserID) (*models.TransactionView, error)
	ReturnBack(ctx context.Context, txID id.TransactionID, actor id.UserID, note string) (*models.TransactionView, error)
	MyTransactions(ctx context.Context, user id.UserID) ([]models.TransactionView, error)

	GetDocument(ctx context.Context, documentNumber string) (*models.DocumentDetail, error)
	Timeline(ctx context.Context, documentNumber string) ([]models.TimelineEntry, error)
	Archive(ctx context.Context, documentNumber string, actor models.Actor, note string) (*models.Document, error)
	Unarchive(ctx context.Context, documentNumber string, actor models.Actor) (*models.Document, error)

	Unread(ctx context.Context, user id.UserID) (models.UnreadCounts, error)
	MarkSeen(ctx context.Context, user id.UserID, inbox string) error

	ActiveReport(ctx context.Context) ([]models.ActiveAssignment, error)
	OverdueReport(ctx context.Context) ([]models.OverdueItem, error)
	HoldingsReport(ctx context.Context) ([]models.Holding, error)
	OverdueThreshold() time.Duration
}

// Handler serves the custody ledger, document registry, inbox and report
// routes.
type Handler struct {
	custody Service
	logger  *slog.Logger
}

func New(custody Service, logger *slog.Logger) *Handler {
	return &Handler{custody: custody, logger: logger}
}

// Register mounts the routes. Callers must already be authenticated.
func (h *Handler) Register(r chi.Router) {
	r.Route("/custody", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/mine", h.handleMine)
		r.Post("/{id}/accept", h.resolution("accept", h.custody.Accept))
		r.Post("/{id}/reject", h.resolution("reject", h.custody.Reject))
		r.Post("/{id}/cancel", h.resolution("cancel", h.custody.Cancel))
		r.Post("/{id}/return", h.handleReturn)
	})

	r.Route("/documents/{number}", func(r chi.Router) {
		r.Get("/", h.handleGetDocument)
		r.Get("/timeline", h.handleTimeline)
		r.Post("/archive", h.handleArchive)
		r.Post("/unarchive", h.handleUnarchive)
	})

	r.Get("/inbox/unread", h.handleUnread)
	r.Post("/inbox/{inbox}/seen", h.handleMarkSeen)

	r.Route("/reports", func(r chi.Router) {
		r.Use(admin.RequireAdmin(h.logger))
		r.Get("/active", h.handleActiveReport)
		r.Get("/overdue", h.handleOverdueReport)
		r.Get("/holdings", h.handleHoldingsReport)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateCustodyRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	view, err := h.custody.CreateCustody(ctx, req.DocumentNumber, req.toUser, requestcontext.UserID(ctx), req.Note)
	if err != nil {
		h.fail(w, r, "failed to create custody transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

type resolveFunc func(ctx context.Context, txID id.TransactionID, actor id.UserID) (*models.TransactionView, error)

func (h *Handler) resolution(op string, resolve resolveFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		txID, err := id.ParseTransactionID(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		view, err := resolve(ctx, txID, requestcontext.UserID(ctx))
		if err != nil {
			h.fail(w, r, "failed to "+op+" custody transaction", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID, err := id.ParseTransactionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[NoteRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	view, err := h.custody.ReturnBack(ctx, txID, requestcontext.UserID(ctx), req.Note)
	if err != nil {
		h.fail(w, r, "failed to return document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	views, err := h.custody.MyTransactions(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(w, r, "failed to list transactions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	detail, err := h.custody.GetDocument(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, "failed to load document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	entries, err := h.custody.Timeline(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, "failed to load timeline", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[NoteRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	doc, err := h.custody.Archive(ctx, chi.URLParam(r, "number"), actor(ctx), req.Note)
	if err != nil {
		h.fail(w, r, "failed to archive document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleUnarchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.custody.Unarchive(ctx, chi.URLParam(r, "number"), actor(ctx))
	if err != nil {
		h.fail(w, r, "failed to unarchive document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleUnread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.custody.Unread(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(w, r, "failed to count unread", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UnreadResponse{UnreadCounts: counts, Total: counts.Total()})
}

func (h *Handler) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.custody.MarkSeen(ctx, requestcontext.UserID(ctx), chi.URLParam(r, "inbox")); err != nil {
		h.fail(w, r, "failed to mark inbox seen", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActiveReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.custody.ActiveReport(r.Context())
	if err != nil {
		h.fail(w, r, "failed to build active report", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleOverdueReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.custody.OverdueReport(r.Context())
	if err != nil {
		h.fail(w, r, "failed to build overdue report", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newOverdueResponse(h.custody.OverdueThreshold(), rows))
}

func (h *Handler) handleHoldingsReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.custody.HoldingsReport(r.Context())
	if err != nil {
		h.fail(w, r, "failed to build holdings report", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

func actor(ctx context.Context) models.Actor {
	return models.Actor{UserID: requestcontext.UserID(ctx), Admin: requestcontext.IsAdmin(ctx)}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"user_id", requestcontext.UserID(ctx).String(),
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteError(w, err)
}
