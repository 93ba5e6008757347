package handler

import (
	"context"
	"crypto/rand"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/faststore"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/repository"
	"github.com/dinhkhaphancs/quiz-orchestration-core/pkg/auth"
	"github.com/dinhkhaphancs/quiz-orchestration-core/pkg/response"
)

const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O/1/I, avoids host-readout ambiguity

// SessionHandler is the thin REST boundary around session creation and
// join-code resolution: everything gameplay-shaped happens over the
// WebSocket connections WSHandler terminates.
type SessionHandler struct {
	store    *faststore.Store
	quizzes  repository.QuizRepository
	sessions repository.SessionRepository
	registry *Registry
	jwt      *auth.JWTManager
	log      *zap.Logger
}

func NewSessionHandler(store *faststore.Store, quizzes repository.QuizRepository, sessions repository.SessionRepository, registry *Registry, jwt *auth.JWTManager, log *zap.Logger) *SessionHandler {
	return &SessionHandler{store: store, quizzes: quizzes, sessions: sessions, registry: registry, jwt: jwt, log: log}
}

type createSessionRequest struct {
	QuizID         string `json:"quizId" binding:"required"`
	HostID         string `json:"hostId" binding:"required"`
	HostCredential string `json:"hostCredential" binding:"required"`
	ExamMode       bool   `json:"examMode"`
}

type createSessionResponse struct {
	SessionID       string `json:"sessionId"`
	JoinCode        string `json:"joinCode"`
	ControllerToken string `json:"controllerToken"`
}

// CreateSession loads a quiz, opens a new LOBBY session for it and starts
// its Actor, returning the host's controller token.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WithError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	quiz, err := h.quizzes.GetQuizByID(c, req.QuizID)
	if err != nil {
		response.WithError(c, http.StatusNotFound, "quiz not found", err.Error())
		return
	}

	credentialHash, err := auth.HashHostCredential(req.HostCredential)
	if err != nil {
		response.WithError(c, http.StatusInternalServerError, "failed to secure host credential", err.Error())
		return
	}

	sess := model.NewSession(uuid.NewString(), quiz.ID, generateJoinCode(), req.HostID)
	sess.HostCredentialHash = credentialHash
	sess.ExamMode = req.ExamMode

	if err := h.store.SaveSession(c, sess); err != nil {
		response.WithError(c, http.StatusInternalServerError, "failed to create session", err.Error())
		return
	}
	if err := h.store.MapJoinCode(c, sess.JoinCode, sess.ID); err != nil {
		response.WithError(c, http.StatusInternalServerError, "failed to map join code", err.Error())
		return
	}
	if h.sessions != nil {
		if err := h.sessions.CreateSession(c, sess); err != nil {
			h.log.Warn("persistent session create failed", zap.Error(err))
		}
	}

	h.registry.Start(context.Background(), sess, quiz)

	token, err := h.jwt.GenerateControllerToken(sess.ID, sess.HostID)
	if err != nil {
		response.WithError(c, http.StatusInternalServerError, "failed to issue controller token", err.Error())
		return
	}

	response.WithSuccess(c, http.StatusCreated, "session created", createSessionResponse{
		SessionID: sess.ID, JoinCode: sess.JoinCode, ControllerToken: token,
	})
}

type joinRequestBody struct {
	Nickname string `json:"nickname" binding:"required"`
}

type joinResponse struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
	Token         string `json:"token"`
}

// JoinByCode resolves a join code to a running session and admits the
// participant through the owning Actor, returning their participant token.
func (h *SessionHandler) JoinByCode(c *gin.Context) {
	joinCode := strings.ToUpper(strings.TrimSpace(c.Param("joinCode")))
	var req joinRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WithError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sessionID, err := h.store.ResolveJoinCode(c, joinCode)
	if err != nil {
		response.WithError(c, http.StatusNotFound, "join code not found", err.Error())
		return
	}

	actor, ok := h.registry.Get(sessionID)
	if !ok {
		response.WithError(c, http.StatusNotFound, "session is not running", "")
		return
	}

	participantID := uuid.NewString()
	clientIP := c.ClientIP()
	if _, err := actor.Join(c, participantID, req.Nickname, clientIP); err != nil {
		response.WithError(c, http.StatusBadRequest, "could not join session", err.Error())
		return
	}

	token, err := h.jwt.GenerateParticipantToken(participantID, sessionID, req.Nickname)
	if err != nil {
		response.WithError(c, http.StatusInternalServerError, "failed to issue participant token", err.Error())
		return
	}

	response.WithSuccess(c, http.StatusCreated, "joined session", joinResponse{
		SessionID: sessionID, ParticipantID: participantID, Token: token,
	})
}

type bigScreenTokenResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// BigScreenToken issues a read-only projector token for a join code,
// without admitting a participant.
func (h *SessionHandler) BigScreenToken(c *gin.Context) {
	joinCode := strings.ToUpper(strings.TrimSpace(c.Param("joinCode")))
	sessionID, err := h.store.ResolveJoinCode(c, joinCode)
	if err != nil {
		response.WithError(c, http.StatusNotFound, "join code not found", err.Error())
		return
	}

	token, err := h.jwt.GenerateBigScreenToken(sessionID)
	if err != nil {
		response.WithError(c, http.StatusInternalServerError, "failed to issue bigscreen token", err.Error())
		return
	}
	response.WithSuccess(c, http.StatusOK, "bigscreen token issued", bigScreenTokenResponse{SessionID: sessionID, Token: token})
}

// Health reports liveness for load balancer probes.
func (h *SessionHandler) Health(c *gin.Context) {
	response.WithSuccess(c, http.StatusOK, "ok", nil)
}

func generateJoinCode() string {
	const length = 6
	buf := make([]byte, length)
	rand.Read(buf)
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(out)
}
