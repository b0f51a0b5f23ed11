package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/paymentsportal/internal/apierror"
	"github.com/aryan0dhankhar/paymentsportal/internal/events"
	"github.com/aryan0dhankhar/paymentsportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/paymentsportal/internal/security"
)

const (
	pingInterval = 15 * time.Second
	writeWait    = 5 * time.Second
)

// StreamHandler pushes transaction lifecycle events to staff over a websocket.
type StreamHandler struct {
	hub            *events.Hub
	authz          *security.AuthorizationService
	responder      *apierror.Responder
	allowedOrigins []string
	logger         *slog.Logger
}

func NewStreamHandler(hub *events.Hub, authz *security.AuthorizationService, responder *apierror.Responder, allowedOrigins []string, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &StreamHandler{
		hub:            hub,
		authz:          authz,
		responder:      responder,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

func (h *StreamHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no origin.
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /api/intl/stream
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	if err := h.authz.Authorize(id, security.PermSubscribeQueueStream); err != nil {
		h.responder.Error(w, r, err)
		return
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	feed, cancel := h.hub.Subscribe()
	defer cancel()
	metrics.StreamClientConnected()
	defer metrics.StreamClientDisconnected()
	h.logger.Debug("stream subscriber connected", slog.String("user_id", id.UserID))

	// The client never sends data; reading surfaces its close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-feed:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(event); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket closed", slog.String("user_id", id.UserID))
				}
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
