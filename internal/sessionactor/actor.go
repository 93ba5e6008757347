// Package sessionactor is the per-session orchestrator: one Actor runs a
// single goroutine owning a Session's state machine (spec.md §4.D),
// serializing every control op, timer expiry and scoring result through
// one mailbox so no two goroutines ever mutate the same session or
// participant concurrently. Grounded on
// utkarshjosh-quiz-maker's Room actor (msgChan/tickChan/closeChan select
// loop), generalized from a chat-room shape into the quiz lifecycle.
package sessionactor

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/apperr"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/audit"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/faststore"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/repository"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/timer"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

// Deps bundles an Actor's collaborators. Repositories may be nil in tests
// that don't exercise persistent-store mirroring.
type Deps struct {
	Store        *faststore.Store
	Router       *fanout.Router
	Audit        *audit.Logger
	Log          *zap.Logger
	Sessions     repository.SessionRepository
	Participants repository.ParticipantRepository
	Answers      repository.AnswerRepository

	TickInterval      time.Duration
	ReconnectGrace    time.Duration
	ScoringPopTimeout time.Duration
}

// Actor owns one live session for its entire lifetime, from LOBBY to
// ENDED. Every field below is touched only while a.mu is held, either by
// the Run loop's dispatch or by a read-only accessor.
type Actor struct {
	mu sync.RWMutex

	session *model.Session
	quiz    *model.Quiz

	participants          map[string]*model.Participant
	questionAnsweredCount map[string]int
	questionAnswers       map[string][]*model.Answer
	lastQuestionScores    map[string]int
	lastReveal            *wsproto.RevealAnswersPayload
	questionsCompleted    int

	store            *faststore.Store
	sessionsRepo     repository.SessionRepository
	participantsRepo repository.ParticipantRepository
	answersRepo      repository.AnswerRepository
	router           *fanout.Router
	audit            *audit.Logger
	log              *zap.Logger

	tickInterval      time.Duration
	reconnectGrace    time.Duration
	scoringPopTimeout time.Duration

	tmr             *timer.Timer
	timerQuestionID string

	mailbox   chan request
	done      chan struct{}
	closeOnce sync.Once
}

// New constructs an Actor for a freshly created session. Run must be
// called (typically via `go actor.Run(ctx)`) before any op is enqueued.
func New(session *model.Session, quiz *model.Quiz, deps Deps) *Actor {
	if deps.TickInterval <= 0 {
		deps.TickInterval = time.Second
	}
	if deps.ReconnectGrace <= 0 {
		deps.ReconnectGrace = 5 * time.Minute
	}
	if deps.ScoringPopTimeout <= 0 {
		deps.ScoringPopTimeout = 2 * time.Second
	}
	return &Actor{
		session:               session,
		quiz:                  quiz,
		participants:          make(map[string]*model.Participant),
		questionAnsweredCount: make(map[string]int),
		questionAnswers:       make(map[string][]*model.Answer),
		lastQuestionScores:    make(map[string]int),
		store:                 deps.Store,
		sessionsRepo:          deps.Sessions,
		participantsRepo:      deps.Participants,
		answersRepo:           deps.Answers,
		router:                deps.Router,
		audit:                 deps.Audit,
		log:                   deps.Log,
		tickInterval:          deps.TickInterval,
		reconnectGrace:        deps.ReconnectGrace,
		scoringPopTimeout:     deps.ScoringPopTimeout,
		mailbox:               make(chan request, 64),
		done:                  make(chan struct{}),
	}
}

// Run drives the actor until ctx is cancelled or Close is called. It also
// starts the session's scoring-queue consumer goroutine, stopped via the
// same context.
func (a *Actor) Run(ctx context.Context) {
	scoringCtx, cancelScoring := context.WithCancel(ctx)
	defer cancelScoring()
	go a.runScoringWorker(scoringCtx)
	defer a.cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case req := <-a.mailbox:
			a.dispatch(req)
		}
	}
}

// Close stops the Run loop and its timer. Idempotent.
func (a *Actor) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
		a.mu.Lock()
		if a.tmr != nil {
			a.tmr.Stop()
		}
		a.mu.Unlock()
	})
}

func (a *Actor) cleanup() {
	a.mu.Lock()
	if a.tmr != nil {
		a.tmr.Stop()
	}
	a.mu.Unlock()
	a.log.Info("session actor stopped", zap.String("sessionId", a.session.ID))
}

// enqueue sends a request and blocks for its reply, the path used by
// every host-initiated op.
func (a *Actor) enqueue(ctx context.Context, kind string, payload any) (any, error) {
	reply := make(chan response, 1)
	req := request{kind: kind, payload: payload, reply: reply}
	select {
	case a.mailbox <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return nil, apperr.New(apperr.SessionNotFound, "session actor closed")
	}
	select {
	case res := <-reply:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// postInternal fire-and-forgets an internally-generated event (timer
// expiry, all-answered, scoring commit) into the mailbox.
func (a *Actor) postInternal(kind string, payload any) {
	select {
	case a.mailbox <- request{kind: kind, payload: payload}:
	case <-a.done:
	}
}

func (a *Actor) dispatch(req request) {
	opCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.mu.Lock()
	data, err := a.route(opCtx, req.kind, req.payload)
	a.mu.Unlock()

	if err != nil {
		kind, msg := apperr.As(err)
		a.router.PublishController(opCtx, a.session.ID, wsproto.Event{
			Event:   wsproto.EventError,
			Payload: wsproto.ErrorPayload{Event: req.kind, Error: string(kind) + ": " + msg},
		})
	}
	if req.reply != nil {
		req.reply <- response{data: data, err: err}
	}
}

func (a *Actor) route(ctx context.Context, kind string, payload any) (any, error) {
	switch kind {
	case wsproto.InStartQuiz:
		return a.handleStartQuiz(ctx, payload.(hostOp).HostID)
	case wsproto.InNextQuestion:
		return a.handleNextQuestion(ctx, payload.(hostOp).HostID)
	case wsproto.InEndQuiz:
		return a.handleEndQuiz(ctx, payload.(hostOp).HostID)
	case wsproto.InSkipQuestion:
		return a.handleSkipQuestion(ctx, payload.(hostOp).HostID)
	case wsproto.InVoidQuestion:
		op := payload.(voidOp)
		return a.handleVoidQuestion(ctx, op.HostID, op.Msg)
	case wsproto.InPauseTimer:
		return a.handlePauseTimer(ctx, payload.(hostOp).HostID)
	case wsproto.InResumeTimer:
		return a.handleResumeTimer(ctx, payload.(hostOp).HostID)
	case wsproto.InResetTimer:
		op := payload.(resetTimerOp)
		return a.handleResetTimer(ctx, op.HostID, op.NewTimeLimit)
	case wsproto.InKickParticipant:
		op := payload.(kickOp)
		op.Ban = false
		return a.handleKickOrBan(ctx, op)
	case wsproto.InBanParticipant:
		op := payload.(kickOp)
		op.Ban = true
		return a.handleKickOrBan(ctx, op)
	case wsproto.InToggleLateJoiners:
		op := payload.(toggleLateJoinersOp)
		return a.handleToggleLateJoiners(ctx, op.HostID, op.Allow)
	case opJoin:
		return a.handleJoin(ctx, payload.(joinRequest))
	case opTimerExpired:
		a.handleTimerExpired(ctx, payload.(string))
		return nil, nil
	case opAllAnswered:
		a.handleAllAnswered(ctx, payload.(string))
		return nil, nil
	case opScoreCommit:
		a.handleScoreCommit(ctx, payload.(scoreCommit))
		return nil, nil
	default:
		return nil, apperr.New(apperr.InternalError, "unknown op: "+kind)
	}
}

// --- Public control-op API, each a thin wrapper over enqueue. ---

func (a *Actor) StartQuiz(ctx context.Context, hostID string) error {
	_, err := a.enqueue(ctx, wsproto.InStartQuiz, hostOp{HostID: hostID})
	return err
}

func (a *Actor) NextQuestion(ctx context.Context, hostID string) error {
	_, err := a.enqueue(ctx, wsproto.InNextQuestion, hostOp{HostID: hostID})
	return err
}

func (a *Actor) EndQuiz(ctx context.Context, hostID string) error {
	_, err := a.enqueue(ctx, wsproto.InEndQuiz, hostOp{HostID: hostID})
	return err
}

func (a *Actor) SkipQuestion(ctx context.Context, hostID string) error {
	_, err := a.enqueue(ctx, wsproto.InSkipQuestion, hostOp{HostID: hostID})
	return err
}

func (a *Actor) VoidQuestion(ctx context.Context, hostID string, msg wsproto.VoidQuestionMsg) error {
	_, err := a.enqueue(ctx, wsproto.InVoidQuestion, voidOp{HostID: hostID, Msg: msg})
	return err
}

func (a *Actor) PauseTimer(ctx context.Context, hostID string) error {
	_, err := a.enqueue(ctx, wsproto.InPauseTimer, hostOp{HostID: hostID})
	return err
}

func (a *Actor) ResumeTimer(ctx context.Context, hostID string) error {
	_, err := a.enqueue(ctx, wsproto.InResumeTimer, hostOp{HostID: hostID})
	return err
}

func (a *Actor) ResetTimer(ctx context.Context, hostID string, newLimit int) error {
	_, err := a.enqueue(ctx, wsproto.InResetTimer, resetTimerOp{HostID: hostID, NewTimeLimit: newLimit})
	return err
}

func (a *Actor) KickParticipant(ctx context.Context, hostID, participantID, reason string) error {
	_, err := a.enqueue(ctx, wsproto.InKickParticipant, kickOp{HostID: hostID, ParticipantID: participantID, Reason: reason})
	return err
}

func (a *Actor) BanParticipant(ctx context.Context, hostID, participantID, reason string) error {
	_, err := a.enqueue(ctx, wsproto.InBanParticipant, kickOp{HostID: hostID, ParticipantID: participantID, Reason: reason, Ban: true})
	return err
}

func (a *Actor) ToggleLateJoiners(ctx context.Context, hostID string, allow bool) error {
	_, err := a.enqueue(ctx, wsproto.InToggleLateJoiners, toggleLateJoinersOp{HostID: hostID, Allow: allow})
	return err
}

// Join admits a participant to the session (lobby join or late join),
// per the Open Question decision that a late joiner during
// ACTIVE_QUESTION is admitted as a spectator rather than rejected.
func (a *Actor) Join(ctx context.Context, participantID, nickname, ip string) (*model.Participant, error) {
	data, err := a.enqueue(ctx, opJoin, joinRequest{ParticipantID: participantID, Nickname: nickname, IP: ip})
	if err != nil {
		return nil, err
	}
	p, _ := data.(*model.Participant)
	return p, nil
}

// NotifyAllAnswered is called by the submission pipeline once every
// active, non-spectator participant has an accepted answer for the
// current question, triggering the "all_answered" reveal transition
// without waiting on scoring to finish.
func (a *Actor) NotifyAllAnswered(questionID string) {
	a.postInternal(opAllAnswered, questionID)
}

// notifyScoreCommit hands a completed scoring calculation back to the
// actor for committing, called by the scoring worker goroutine (or, in
// tests, directly).
func (a *Actor) notifyScoreCommit(c scoreCommit) {
	a.postInternal(opScoreCommit, c)
}

// --- Read-only accessors for recovery/metrics/handler callers. ---

func (a *Actor) Snapshot() (*model.Session, *model.Quiz) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Clone(), a.quiz
}

func (a *Actor) Participant(id string) (*model.Participant, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.participants[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (a *Actor) ParticipantsSnapshot() []*model.Participant {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.participantSliceLocked()
}

// LastReveal returns the most recently broadcast reveal payload, used by
// internal/recovery to rebuild state for a client reconnecting during REVEAL.
func (a *Actor) LastReveal() *wsproto.RevealAnswersPayload {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastReveal
}

func (a *Actor) participantSliceLocked() []*model.Participant {
	out := make([]*model.Participant, 0, len(a.participants))
	for _, p := range a.participants {
		out = append(out, p)
	}
	return out
}

func (a *Actor) activeNonEliminatedLocked() []*model.Participant {
	out := make([]*model.Participant, 0, len(a.participants))
	for _, p := range a.participants {
		if p.IsActive && !p.IsEliminated {
			out = append(out, p)
		}
	}
	return out
}

// refreshParticipantCounts recomputes session.ParticipantCount (every
// active participant, including spectators) and session.AnswerEligibleCount
// (active participants who can actually submit an answer) from
// session.ActiveParticipants. Must be called after any admission,
// elimination, kick or ban.
func (a *Actor) refreshParticipantCounts() {
	a.session.ParticipantCount = len(a.session.ActiveParticipants)
	eligible := 0
	for id := range a.session.ActiveParticipants {
		if p, ok := a.participants[id]; ok && !p.IsSpectator {
			eligible++
		}
	}
	a.session.AnswerEligibleCount = eligible
}

// ShuffledOptionsForParticipant deterministically reorders a question's
// options for one participant, seeded from (participantID, questionID) so
// the same participant always sees the same order for the same question —
// spec.md §9's design note for per-participant shuffling. recovery.Service
// calls this with the same arguments to reconstruct the order a
// reconnecting participant already saw, rather than resending the
// canonical (unshuffled) order.
func ShuffledOptionsForParticipant(opts []model.Option, participantID, questionID string) []model.Option {
	out := make([]model.Option, len(opts))
	copy(out, opts)
	rng := rand.New(rand.NewSource(shuffleSeed(participantID, questionID)))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func shuffleSeed(participantID, questionID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(participantID))
	h.Write([]byte{0})
	h.Write([]byte(questionID))
	return int64(h.Sum64())
}
