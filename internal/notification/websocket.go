package notification

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"golang.org/x/net/websocket"

	"zimmet/pkg/requestcontext"
)

// WebSocketHandler pushes {"type":"ledger.changed"} to an authenticated user's
// browser whenever the hub signals them. It must be mounted behind the auth
// middleware.
type WebSocketHandler struct {
	hub            *Hub
	logger         *slog.Logger
	allowedOrigins []string

	quit     chan struct{}
	quitOnce sync.Once
}

// NewWebSocketHandler allows every origin when allowedOrigins is empty or
// contains "*".
func NewWebSocketHandler(hub *Hub, logger *slog.Logger, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		quit:           make(chan struct{}),
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Server{
		Handshake: h.handshake,
		Handler:   h.serve,
	}.ServeHTTP(w, r)
}

// Shutdown ends every open session.
func (h *WebSocketHandler) Shutdown() {
	h.quitOnce.Do(func() { close(h.quit) })
}

func (h *WebSocketHandler) handshake(cfg *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(cfg, r)
	if err != nil {
		return err
	}
	cfg.Origin = origin
	if origin == nil || len(h.allowedOrigins) == 0 || slices.Contains(h.allowedOrigins, "*") {
		return nil
	}
	if !slices.Contains(h.allowedOrigins, origin.Scheme+"://"+origin.Host) {
		h.logger.WarnContext(r.Context(), "websocket origin rejected", "origin", origin.String())
		return websocket.ErrBadWebSocketOrigin
	}
	return nil
}

func (h *WebSocketHandler) serve(ws *websocket.Conn) {
	defer ws.Close()
	ctx := ws.Request().Context()
	user := requestcontext.UserID(ctx)

	sub := h.hub.Subscribe(user)
	defer h.hub.Unsubscribe(sub)
	h.logger.DebugContext(ctx, "websocket session opened", "user_id", user.String())

	// Inbound frames are ignored; a read error means the client went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard []byte
		for websocket.Message.Receive(ws, &discard) == nil {
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-h.quit:
			return
		case <-ctx.Done():
			return
		case <-sub.C:
			if err := websocket.JSON.Send(ws, Message{Type: EventLedgerChanged}); err != nil {
				h.logger.DebugContext(ctx, "websocket send failed", "user_id", user.String(), "error", err)
				return
			}
		}
	}
}
