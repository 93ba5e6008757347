// Package submission implements the answer-submission validation chain
// of spec.md §4.F: an ordered sequence of checks against the fast store's
// view of a session, ending in an atomic dedup claim, after which the
// answer is queued for scoring. It deliberately reads only the fast
// store's Session/Participant records (never the session actor directly)
// since that is the "D's view" the pipeline validates against.
package submission

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/apperr"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/faststore"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

// AllAnsweredNotifier is called once every active, non-spectator
// participant has an accepted answer for the current question. Wired by
// the composition root to the owning sessionactor.Actor.NotifyAllAnswered.
type AllAnsweredNotifier func(sessionID, questionID string)

type Pipeline struct {
	store          *faststore.Store
	router         *fanout.Router
	log            *zap.Logger
	onAnswered     AllAnsweredNotifier
	reconnectGrace time.Duration
}

func New(store *faststore.Store, router *fanout.Router, log *zap.Logger, reconnectGrace time.Duration, onAnswered AllAnsweredNotifier) *Pipeline {
	if reconnectGrace <= 0 {
		reconnectGrace = 5 * time.Minute
	}
	return &Pipeline{store: store, router: router, log: log, reconnectGrace: reconnectGrace, onAnswered: onAnswered}
}

// Submit runs the full 7-step validation chain and, on acceptance, stores
// the preliminary answer and enqueues it for scoring. now is injected for
// testability.
func (p *Pipeline) Submit(ctx context.Context, sessionID, participantID string, msg wsproto.SubmitAnswerMsg, now time.Time) (*model.Answer, error) {
	// Step 1: schema.
	if err := validateSchema(msg); err != nil {
		return nil, err
	}

	// Step 2: session exists.
	sess, err := p.store.GetSession(ctx, sessionID)
	if errors.Is(err, redis.Nil) {
		return nil, apperr.New(apperr.SessionNotFound, "session not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.SessionNotFound, "session lookup failed", err)
	}
	if sess.State == model.SessionEnded {
		return nil, apperr.New(apperr.SessionEnded, "session has ended")
	}

	// Step 3: state check.
	if sess.State != model.SessionActiveQuestion {
		return nil, apperr.New(apperr.QuestionNotActive, "no question is currently active")
	}

	// Step 4: question match.
	if sess.CurrentQuestionID != msg.QuestionID {
		return nil, apperr.New(apperr.InvalidQuestion, "answer does not match the active question")
	}

	// Step 5: timer check.
	if sess.TimerEndTimeMs == 0 {
		return nil, apperr.New(apperr.QuestionNotActive, "no timer is running for this question")
	}
	if now.UnixMilli() > sess.TimerEndTimeMs {
		return nil, apperr.New(apperr.TimeExpired, "time has expired for this question")
	}

	// Step 6: atomic dedup claim — the one operation in this chain that
	// must itself be exactly-once (I2).
	ttl := time.Until(time.UnixMilli(sess.TimerEndTimeMs)) + 2*time.Second
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	claimed, err := p.store.TryClaimAnswerSlot(ctx, participantID, msg.QuestionID, ttl)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, "dedup check failed", err)
	}
	if !claimed {
		return nil, apperr.New(apperr.AlreadySubmitted, "an answer was already submitted for this question")
	}

	// Step 7: participant liveness.
	participant, err := p.store.GetParticipant(ctx, sessionID, participantID)
	if err != nil {
		p.store.ReleaseAnswerSlot(ctx, participantID, msg.QuestionID)
		return nil, apperr.New(apperr.ParticipantNotFound, "participant not found")
	}
	if !participant.IsActive {
		p.store.ReleaseAnswerSlot(ctx, participantID, msg.QuestionID)
		return nil, apperr.New(apperr.ParticipantNotActive, "participant is not active")
	}
	if participant.IsEliminated {
		p.store.ReleaseAnswerSlot(ctx, participantID, msg.QuestionID)
		return nil, apperr.New(apperr.ParticipantEliminated, "participant has been eliminated")
	}
	if participant.IsSpectator {
		p.store.ReleaseAnswerSlot(ctx, participantID, msg.QuestionID)
		return nil, apperr.New(apperr.ParticipantNotActive, "spectators cannot submit answers")
	}

	p.store.RefreshParticipantTTL(ctx, sessionID, participantID, p.reconnectGrace)

	responseTimeMs := now.Sub(sess.CurrentQuestionStartTime).Milliseconds()
	if responseTimeMs < 0 {
		responseTimeMs = 0
	}

	answer := &model.Answer{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		ParticipantID:     participantID,
		QuestionID:        msg.QuestionID,
		SelectedOptionIDs: msg.SelectedOptions,
		AnswerText:        msg.AnswerText,
		AnswerNumber:      msg.AnswerNumber,
		SubmittedAt:       now,
		ResponseTimeMs:    responseTimeMs,
	}

	if err := p.store.PutPendingAnswer(ctx, sessionID, answer); err != nil {
		p.store.ReleaseAnswerSlot(ctx, participantID, msg.QuestionID)
		return nil, apperr.Wrap(apperr.InternalError, "failed to record accepted answer", err)
	}
	if err := p.store.PushScoringWork(ctx, sessionID, answer.ID); err != nil {
		// The answer is already durably pending; a dropped queue push only
		// delays scoring until the next reconciliation sweep, so this is
		// logged rather than turned into a client-visible rejection.
		p.log.Warn("scoring enqueue failed, answer remains pending for reconciliation", zap.String("answerId", answer.ID), zap.Error(err))
	}

	p.router.PublishParticipant(ctx, sessionID, participantID, wsproto.Event{
		Event: wsproto.EventAnswerAccepted,
		Payload: wsproto.AnswerAcceptedPayload{
			QuestionID: msg.QuestionID, AnswerID: answer.ID, ResponseTimeMs: responseTimeMs, ServerTimestamp: now.UnixMilli(),
		},
	})

	count, countErr := p.store.IncrAnsweredCount(ctx, sessionID, msg.QuestionID)
	if countErr != nil {
		p.log.Warn("answered-count increment failed", zap.Error(countErr))
	} else {
		// Spectators (late joiners admitted mid-question, eliminated
		// players) never submit, so the completion threshold is measured
		// against AnswerEligibleCount rather than the spectator-inclusive
		// ParticipantCount — otherwise all_answered could never fire with
		// a spectator present.
		pct := 0.0
		if sess.AnswerEligibleCount > 0 {
			pct = float64(count) / float64(sess.AnswerEligibleCount) * 100
		}
		p.router.PublishController(ctx, sessionID, wsproto.Event{
			Event: wsproto.EventAnswerCountUpdated,
			Payload: wsproto.AnswerCountUpdatedPayload{
				QuestionID: msg.QuestionID, AnsweredCount: int(count), TotalParticipants: sess.AnswerEligibleCount, Percentage: pct,
			},
		})
		if p.onAnswered != nil && sess.AnswerEligibleCount > 0 && int(count) >= sess.AnswerEligibleCount {
			p.onAnswered(sessionID, msg.QuestionID)
		}
	}

	return answer, nil
}

func validateSchema(msg wsproto.SubmitAnswerMsg) error {
	if strings.TrimSpace(msg.QuestionID) == "" {
		return apperr.New(apperr.InvalidSchema, "questionId is required")
	}
	hasSelection := len(msg.SelectedOptions) > 0
	hasText := strings.TrimSpace(msg.AnswerText) != ""
	hasNumber := msg.AnswerNumber != nil
	if !hasSelection && !hasText && !hasNumber {
		return apperr.New(apperr.InvalidSchema, "no answer content provided")
	}
	for _, id := range msg.SelectedOptions {
		if strings.TrimSpace(id) == "" {
			return apperr.New(apperr.InvalidSchema, "selectedOptions contains an empty id")
		}
	}
	return nil
}
