package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/auth"
	"github.com/tandemhq/tandem/internal/metrics"
	"github.com/tandemhq/tandem/internal/models"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxFrameSize      = 4096
	closeUnauthorized = 4401
)

// LoginAuditor records a login-audit trail entry when a connection joins
// its first tenant room. Best-effort: failures are logged, never surfaced.
type LoginAuditor interface {
	RecordLogin(ctx context.Context, tenantID, userID string) error
}

// SocketServer terminates websocket connections: it authenticates the
// presented credential, registers the connection, and dispatches inbound
// frames to the membership manager and broadcaster.
type SocketServer struct {
	hub        *Hub
	verifier   *auth.TokenVerifier
	membership *Membership
	events     *Broadcaster
	auditor    LoginAuditor
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewSocketServer creates the websocket endpoint handler. auditor may be nil.
func NewSocketServer(hub *Hub, verifier *auth.TokenVerifier, membership *Membership, events *Broadcaster, auditor LoginAuditor, log zerolog.Logger) *SocketServer {
	return &SocketServer{
		hub:        hub,
		verifier:   verifier,
		membership: membership,
		events:     events,
		auditor:    auditor,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement is the deployment proxy's job; tokens are
			// the credential here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// inboundFrame is the superset of all client → server frame fields.
type inboundFrame struct {
	Type       string `json:"type"`
	TenantID   string `json:"tenantId,omitempty"`
	TargetID   string `json:"targetId,omitempty"`
	TargetKind string `json:"targetKind,omitempty"`
	TaskID     string `json:"taskId,omitempty"`
	IsTyping   bool   `json:"isTyping,omitempty"`
}

// ServeWS upgrades the connection, verifies the credential, and runs the
// pumps. A missing or invalid token terminates the connection immediately
// with no application-level error payload (close code only).
func (s *SocketServer) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	identity, err := s.verifier.Verify(connectionToken(r))
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues("auth").Inc()
		s.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("connection rejected")
		msg := websocket.FormatCloseMessage(closeUnauthorized, "")
		_ = sock.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = sock.Close()
		return
	}

	conn := NewConn(uuid.NewString(), *identity, sock)
	s.hub.Register(conn)
	s.membership.Attach(conn.ID, identity.UserID)

	go s.writePump(conn)
	s.readPump(conn)
}

// connectionToken extracts the credential from the query string or the
// Authorization header.
func connectionToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// readPump consumes inbound frames until the socket dies, then performs
// the membership teardown exactly once via the hub unregister path.
func (s *SocketServer) readPump(c *Conn) {
	defer func() {
		s.membership.Disconnect(c.ID)
		s.hub.Unregister(c.ID)
	}()

	c.sock.SetReadLimit(maxFrameSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Str("conn", c.ID).Msg("socket read failed")
			}
			return
		}
		s.handleFrame(c, raw)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (s *SocketServer) writePump(c *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleFrame dispatches one inbound frame. Malformed frames are dropped;
// the protocol has no client-visible error channel by design.
func (s *SocketServer) handleFrame(c *Conn, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.log.Debug().Err(err).Str("conn", c.ID).Msg("unparseable frame")
		return
	}

	switch frame.Type {
	case "room:join":
		if frame.TenantID == "" {
			return
		}
		room := s.membership.JoinTenant(c.ID, frame.TenantID)
		if room == "" {
			return
		}
		s.events.RoomJoined(c.ID, room)
		s.recordLogin(frame.TenantID, c.Identity.UserID)

	case "room:leave":
		if frame.TenantID == "" {
			return
		}
		s.membership.LeaveTenant(c.ID, frame.TenantID)

	case "chat:join":
		if frame.TargetID == "" || !models.ValidTargetKind(frame.TargetKind) {
			return
		}
		s.membership.JoinChatTarget(c.ID, models.TargetKind(frame.TargetKind), frame.TargetID)

	case "chat:leave":
		if frame.TargetID == "" || !models.ValidTargetKind(frame.TargetKind) {
			return
		}
		s.membership.LeaveChatTarget(c.ID, models.TargetKind(frame.TargetKind), frame.TargetID)

	case "task:typing":
		if frame.TenantID == "" || frame.TaskID == "" {
			return
		}
		s.events.Typing(frame.TenantID, c.ID, TypingData{
			TaskID:    frame.TaskID,
			UserID:    c.Identity.UserID,
			UserLabel: c.Identity.Label(),
			IsTyping:  frame.IsTyping,
		})

	default:
		s.log.Debug().Str("conn", c.ID).Str("type", frame.Type).Msg("unknown frame type")
	}
}

// recordLogin writes the login-audit entry. Failure here must not block
// the join, so the error stops at the log.
func (s *SocketServer) recordLogin(tenantID, userID string) {
	if s.auditor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.auditor.RecordLogin(ctx, tenantID, userID); err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("user", userID).Msg("login audit failed")
	}
}
