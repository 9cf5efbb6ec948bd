package server

import (
	"chat-presence/auth"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/observability"
	"chat-presence/runtime"
	"chat-presence/sink"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type SocketConfig struct {
	BufferSize   int
	PingInterval time.Duration
	WriteTimeout time.Duration
	// AllowedOrigin is matched against the Origin header; empty allows any.
	AllowedOrigin string
}

// Frame is the JSON envelope of every event written on a socket.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type SocketHandler struct {
	log      *slog.Logger
	gate     *auth.Gate
	hub      *runtime.Hub
	metrics  *observability.Metrics
	cfg      SocketConfig
	upgrader websocket.Upgrader
}

func NewSocketHandler(log *slog.Logger, gate *auth.Gate, hub *runtime.Hub,
	metrics *observability.Metrics, cfg SocketConfig) *SocketHandler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	h := &SocketHandler{log: log, gate: gate, hub: hub, metrics: metrics, cfg: cfg}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *SocketHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.AllowedOrigin == "" {
		return true
	}
	return r.Header.Get("Origin") == h.cfg.AllowedOrigin
}

// Serve runs the handshake then blocks for the whole life of the socket:
// gate -> claimed identity check -> upgrade -> registration -> pumps.
// A rejected handshake never reaches the registry.
func (h *SocketHandler) Serve(c *gin.Context) {
	r, identity, err := h.gate.AuthenticateRequest(c.Request)
	if err != nil {
		h.metrics.ConnectionRejected("unauthenticated")
		h.gate.Reject(c, err)
		return
	}
	ctx := r.Context()

	connection := sink.NewSocketSink(h.cfg.BufferSize)
	session := h.hub.Open(connection)
	if err = session.Authenticate(identity, c.Query("userId")); err != nil {
		abortWithError(c, err)
		return
	}

	header := http.Header{}
	if fresh, renewed := h.gate.Renew(ctx); renewed {
		header.Add("Set-Cookie", auth.CredentialCookie(fresh, h.gate.Cookie()).String())
	}
	conn, err := h.upgrader.Upgrade(c.Writer, r, header)
	if err != nil {
		// The upgrader already answered the client.
		h.log.Warn("WebSocket upgrade failed", "user_id", identity.ID, "error", err)
		_ = session.Close(context.WithoutCancel(ctx))
		return
	}
	defer conn.Close()

	if err = session.Register(ctx); err != nil {
		h.log.Warn("Connection not registered", "user_id", identity.ID, "error", err)
		h.writeClose(conn, websocket.ClosePolicyViolation, errors.MapToHTTPError(err).Message)
		return
	}

	go h.writePump(ctx, conn, connection)
	h.readPump(conn, identity.ID)

	// Unregister before the sink stops, no grace period.
	if err = session.Close(context.WithoutCancel(ctx)); err != nil {
		h.log.Debug("Session already closed", "user_id", identity.ID, "error", err)
	}
	connection.Close()
}

// readPump only watches the socket: clients do not send events, so reads
// exist to process control frames and detect the disconnect.
func (h *SocketHandler) readPump(conn *websocket.Conn, identityID string) {
	pongWait := 2 * h.cfg.PingInterval
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Socket read error", "user_id", identityID, "error", err)
			}
			return
		}
	}
}

// writePump is the only writer of conn.
func (h *SocketHandler) writePump(ctx context.Context, conn *websocket.Conn, connection *sink.SocketSink) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.writeClose(conn, websocket.CloseGoingAway, "server shutting down")
			_ = conn.Close()
			return
		case <-connection.Done():
			return
		case evt := <-connection.Events():
			if err := h.writeEvent(conn, evt); err != nil {
				h.metrics.DeliveryFailed(evt.EventName())
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *SocketHandler) writeEvent(conn *websocket.Conn, evt domain.OutboundEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	return conn.WriteJSON(Frame{Event: evt.EventName(), Data: evt.Payload()})
}

func (h *SocketHandler) writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(h.cfg.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}
