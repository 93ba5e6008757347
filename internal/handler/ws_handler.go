package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/recovery"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/sessionactor"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/submission"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
	"github.com/dinhkhaphancs/quiz-orchestration-core/pkg/auth"
	"github.com/dinhkhaphancs/quiz-orchestration-core/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler terminates the three per-role WebSocket connections of
// spec.md §6, translating decoded inbound events into calls against the
// session's Actor, the submission pipeline, or the recovery service.
type WSHandler struct {
	registry   *Registry
	router     *fanout.Router
	jwt        *auth.JWTManager
	submission *submission.Pipeline
	recovery   *recovery.Service
	log        *zap.Logger
}

func NewWSHandler(registry *Registry, router *fanout.Router, jwtManager *auth.JWTManager, pipeline *submission.Pipeline, recoverySvc *recovery.Service, log *zap.Logger) *WSHandler {
	return &WSHandler{registry: registry, router: router, jwt: jwtManager, submission: pipeline, recovery: recoverySvc, log: log}
}

// HandleParticipant upgrades a participant connection, authenticated by a
// participant token minted by SessionHandler.JoinByCode.
func (h *WSHandler) HandleParticipant(c *gin.Context) {
	claims, err := h.jwt.ValidateParticipantToken(c.Query("token"))
	if err != nil {
		response.WithError(c, http.StatusUnauthorized, "invalid participant token", err.Error())
		return
	}

	actor, ok := h.registry.Get(claims.SessionID)
	if !ok {
		response.WithError(c, http.StatusNotFound, "session is not running", "")
		return
	}

	conn := h.upgrade(c, claims.SessionID, fanout.RoleParticipant, claims.ParticipantID)
	if conn == nil {
		return
	}

	h.router.Register(conn)
	defer h.router.Unregister(conn)

	h.sendAuthenticated(conn, actor, claims.SessionID, claims.ParticipantID, claims.Nickname)
	go conn.WritePump()
	go conn.ReadPump()
	h.pumpParticipant(conn, claims.SessionID, claims.ParticipantID)
}

// HandleController upgrades the session host's control connection.
func (h *WSHandler) HandleController(c *gin.Context) {
	claims, err := h.jwt.ValidateControllerToken(c.Query("token"))
	if err != nil {
		response.WithError(c, http.StatusUnauthorized, "invalid controller token", err.Error())
		return
	}

	actor, ok := h.registry.Get(claims.SessionID)
	if !ok {
		response.WithError(c, http.StatusNotFound, "session is not running", "")
		return
	}

	conn := h.upgrade(c, claims.SessionID, fanout.RoleController, "")
	if conn == nil {
		return
	}

	h.router.Register(conn)
	defer h.router.Unregister(conn)

	h.sendAuthenticated(conn, actor, claims.SessionID, "", "")
	go conn.WritePump()
	go conn.ReadPump()
	h.pumpController(conn, claims.SessionID, claims.HostID)
}

// HandleBigScreen upgrades the read-only projector connection. It never
// sends anything client->server beyond the handshake, so its pump loop
// only drains Inbound to keep ReadPump's deadline handling alive.
func (h *WSHandler) HandleBigScreen(c *gin.Context) {
	claims, err := h.jwt.ValidateBigScreenToken(c.Query("token"))
	if err != nil {
		response.WithError(c, http.StatusUnauthorized, "invalid bigscreen token", err.Error())
		return
	}

	actor, ok := h.registry.Get(claims.SessionID)
	if !ok {
		response.WithError(c, http.StatusNotFound, "session is not running", "")
		return
	}

	conn := h.upgrade(c, claims.SessionID, fanout.RoleBigScreen, "")
	if conn == nil {
		return
	}

	h.router.Register(conn)
	defer h.router.Unregister(conn)

	h.sendAuthenticated(conn, actor, claims.SessionID, "", "")
	go conn.WritePump()
	go conn.ReadPump()
	for range conn.Inbound {
		// big screen is receive-only; anything it sends is ignored.
	}
}

func (h *WSHandler) upgrade(c *gin.Context, sessionID string, role fanout.Role, participantID string) *fanout.Connection {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}
	return fanout.NewConnection(uuid.NewString(), sessionID, role, participantID, ws, h.log)
}

func (h *WSHandler) sendAuthenticated(conn *fanout.Connection, actor *sessionactor.Actor, sessionID, participantID, nickname string) {
	sess, _ := actor.Snapshot()
	summary := wsproto.CurrentStateSummary{ParticipantCount: 0}
	if sess != nil {
		summary.State = string(sess.State)
		summary.CurrentQuestionIndex = sess.CurrentQuestionIndex
		summary.ParticipantCount = sess.ParticipantCount
	}
	h.writeEvent(conn, wsproto.Event{
		Event: wsproto.EventAuthenticated,
		Payload: wsproto.AuthenticatedPayload{
			Success: true, SessionID: sessionID, ParticipantID: participantID, Nickname: nickname, CurrentState: summary,
		},
	})
}

func (h *WSHandler) writeEvent(conn *fanout.Connection, event wsproto.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal outbound event", zap.Error(err))
		return
	}
	select {
	case conn.Send <- data:
	case <-conn.Context().Done():
	}
}

func (h *WSHandler) writeError(conn *fanout.Connection, event string, err error) {
	h.writeEvent(conn, wsproto.Event{Event: wsproto.EventError, Payload: wsproto.ErrorPayload{Event: event, Error: err.Error()}})
}

type inboundEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (h *WSHandler) pumpParticipant(conn *fanout.Connection, sessionID, participantID string) {
	ctx := context.Background()
	for raw := range conn.Inbound {
		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.writeError(conn, "", err)
			continue
		}
		h.dispatchParticipant(ctx, conn, sessionID, participantID, env)
	}
}

func (h *WSHandler) pumpController(conn *fanout.Connection, sessionID, hostID string) {
	ctx := context.Background()
	for raw := range conn.Inbound {
		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.writeError(conn, "", err)
			continue
		}
		h.dispatchController(ctx, conn, sessionID, hostID, env)
	}
}
