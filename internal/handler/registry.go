// Package handler terminates the per-role WebSocket connections of spec.md
// §6 and the thin REST surface around session creation/lookup, wiring
// together every subsystem built so far: sessionactor.Actor runs the
// session, internal/submission validates answers, internal/recovery
// restores a dropped participant, internal/metrics broadcasts system
// health to the controller.
package handler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/audit"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/config"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/faststore"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/metrics"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/repository"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/sessionactor"
)

// Registry is the process-wide map of sessionId -> running Actor. It is
// the composition root's answer to "which goroutine owns this session",
// used both to dispatch control ops/joins and as the
// recovery.ActorLookup the recovery service needs for in-flight state.
type Registry struct {
	store       *faststore.Store
	router      *fanout.Router
	auditLogger *audit.Logger
	metrics     *metrics.Broadcaster
	log         *zap.Logger
	sessionCfg  config.SessionConfig

	sessionsRepo     repository.SessionRepository
	participantsRepo repository.ParticipantRepository
	answersRepo      repository.AnswerRepository

	mu      sync.RWMutex
	actors  map[string]*sessionactor.Actor
	cancels map[string]context.CancelFunc
}

func NewRegistry(
	store *faststore.Store,
	router *fanout.Router,
	auditLogger *audit.Logger,
	metricsBroadcaster *metrics.Broadcaster,
	log *zap.Logger,
	sessionCfg config.SessionConfig,
	sessionsRepo repository.SessionRepository,
	participantsRepo repository.ParticipantRepository,
	answersRepo repository.AnswerRepository,
) *Registry {
	return &Registry{
		store: store, router: router, auditLogger: auditLogger, metrics: metricsBroadcaster, log: log, sessionCfg: sessionCfg,
		sessionsRepo: sessionsRepo, participantsRepo: participantsRepo, answersRepo: answersRepo,
		actors: make(map[string]*sessionactor.Actor), cancels: make(map[string]context.CancelFunc),
	}
}

// Get implements recovery.ActorLookup and is also used directly by the ws
// handler and REST layer to reach a running session's actor.
func (r *Registry) Get(sessionID string) (*sessionactor.Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actors[sessionID]
	return a, ok
}

// Start constructs and runs a new Actor for a freshly created session,
// registering it in the map and starting the session's system_metrics
// broadcast. Returns the running Actor.
func (r *Registry) Start(parent context.Context, sess *model.Session, quiz *model.Quiz) *sessionactor.Actor {
	ctx, cancel := context.WithCancel(parent)

	actor := sessionactor.New(sess, quiz, sessionactor.Deps{
		Store: r.store, Router: r.router, Audit: r.auditLogger, Log: r.log,
		Sessions: r.sessionsRepo, Participants: r.participantsRepo, Answers: r.answersRepo,
		TickInterval:      r.sessionCfg.TickInterval,
		ReconnectGrace:    r.sessionCfg.ReconnectGraceWindow,
		ScoringPopTimeout: 2 * time.Second,
	})

	r.mu.Lock()
	r.actors[sess.ID] = actor
	r.cancels[sess.ID] = cancel
	r.mu.Unlock()

	go actor.Run(ctx)
	r.metrics.Start(ctx, sess.ID)
	go r.watchForEnd(ctx, sess.ID, actor)

	return actor
}

// watchForEnd polls the actor's own state (there is no teardown event to
// subscribe to — Run keeps serving reconnects/leaderboard reads after
// ENDED) and retires the session once it reaches ENDED, stopping the
// metrics broadcast and releasing the registry slot.
func (r *Registry) watchForEnd(ctx context.Context, sessionID string, actor *sessionactor.Actor) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess, _ := actor.Snapshot()
			if sess != nil && sess.State == model.SessionEnded {
				r.Retire(sessionID)
				return
			}
		}
	}
}

// Retire stops a session's metrics broadcast, stops its actor and removes
// it from the registry. Idempotent.
func (r *Registry) Retire(sessionID string) {
	r.mu.Lock()
	actor, hasActor := r.actors[sessionID]
	cancel, hasCancel := r.cancels[sessionID]
	delete(r.actors, sessionID)
	delete(r.cancels, sessionID)
	r.mu.Unlock()

	r.metrics.Stop(sessionID)
	if hasActor {
		actor.Close()
	}
	if hasCancel {
		cancel()
	}
}
