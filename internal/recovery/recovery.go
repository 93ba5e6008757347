// Package recovery implements the reconnect procedure of spec.md §4.H: a
// participant whose connection drops within the hot-record TTL grace
// window reconnects and is handed back the exact state they left — the
// question in flight (or the last reveal), their score, streak and rank —
// without having lost anything to the gameplay that continued without them.
package recovery

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/apperr"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/audit"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/faststore"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/sessionactor"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

// ActorLookup resolves the live session actor for a sessionId, wired by
// the composition root to whatever registry tracks running sessions.
type ActorLookup func(sessionID string) (*sessionactor.Actor, bool)

type Service struct {
	store    *faststore.Store
	router   *fanout.Router
	audit    *audit.Logger
	log      *zap.Logger
	actors   ActorLookup
	leaderN  int64
	reconTTL time.Duration
}

func New(store *faststore.Store, router *fanout.Router, auditLog *audit.Logger, log *zap.Logger, actors ActorLookup, reconnectGrace time.Duration) *Service {
	if reconnectGrace <= 0 {
		reconnectGrace = 5 * time.Minute
	}
	return &Service{store: store, router: router, audit: auditLog, log: log, actors: actors, leaderN: 10, reconTTL: reconnectGrace}
}

// Recover runs the 6-step procedure of spec.md §4.H. newSocketID identifies
// the freshly (re)established connection. The caller is responsible for
// registering that connection with the fanout.Router — Recover only
// publishes into the session's channels, it does not open connections.
func (s *Service) Recover(ctx context.Context, msg wsproto.ReconnectSessionMsg, newSocketID string) (*wsproto.SessionRecoveredPayload, error) {
	payload, err := s.recover(ctx, msg, newSocketID)
	if err != nil {
		kind, reason := apperr.As(err)
		s.router.PublishParticipant(ctx, msg.SessionID, msg.ParticipantID, wsproto.Event{
			Event: wsproto.EventRecoveryFailed, Payload: wsproto.RecoveryFailedPayload{Reason: string(kind)},
		})
		s.audit.Record(ctx, "RECOVERY_FAILED", msg.SessionID, msg.ParticipantID, "", map[string]any{"reason": reason}, err)
		return nil, err
	}
	s.audit.Record(ctx, "RECOVERY_SUCCESS", msg.SessionID, msg.ParticipantID, "", nil, nil)
	return payload, nil
}

func (s *Service) recover(ctx context.Context, msg wsproto.ReconnectSessionMsg, newSocketID string) (*wsproto.SessionRecoveredPayload, error) {
	if strings.TrimSpace(msg.SessionID) == "" || strings.TrimSpace(msg.ParticipantID) == "" {
		return nil, apperr.New(apperr.InvalidRequest, "sessionId and participantId are required")
	}

	sess, err := s.store.GetSession(ctx, msg.SessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.SessionNotFound, "session not found", err)
	}
	if sess.State == model.SessionEnded {
		return nil, apperr.New(apperr.SessionEnded, "session has ended")
	}

	p, err := s.store.GetParticipant(ctx, msg.SessionID, msg.ParticipantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ParticipantNotFound, "participant not found", err)
	}
	if p.IsBanned {
		return nil, apperr.New(apperr.ParticipantBanned, "participant is banned from this session")
	}

	p.SocketID = newSocketID
	p.LastConnectedAt = time.Now()
	if err := s.store.SaveParticipant(ctx, msg.SessionID, p, s.reconTTL); err != nil {
		s.log.Warn("participant reconnect save failed", zap.Error(err))
	}

	payload := &wsproto.SessionRecoveredPayload{
		CurrentState: string(sess.State),
		TotalScore:   p.TotalScore,
		StreakCount:  p.StreakCount,
		IsEliminated: p.IsEliminated,
		IsSpectator:  p.IsSpectator,
	}

	if rank, err := s.store.Rank(ctx, msg.SessionID, msg.ParticipantID); err == nil {
		payload.Rank = int(rank) + 1
	}
	payload.Leaderboard = s.leaderboardSnapshot(ctx, msg.SessionID)

	actor, ok := s.actors(msg.SessionID)
	switch {
	case ok && sess.State == model.SessionActiveQuestion:
		if _, quiz := actor.Snapshot(); quiz != nil {
			if q := quiz.Question(sess.CurrentQuestionID); q != nil {
				qp := wsproto.QuestionPayload{
					QuestionID: q.ID, QuestionText: q.Text, QuestionType: string(q.Type), QuestionImageURL: q.ImageURL,
					TimeLimit: q.TimeLimitSec, ShuffleOptions: q.ShuffleOptions,
				}
				options := q.Options
				if q.ShuffleOptions {
					// Recompute the same per-participant shuffle beginQuestion
					// handed out originally, rather than the canonical order —
					// the seed is deterministic in (participantId, questionId)
					// so this reconstructs it exactly.
					options = sessionactor.ShuffledOptionsForParticipant(q.Options, msg.ParticipantID, q.ID)
				}
				for _, o := range options {
					qp.Options = append(qp.Options, wsproto.OptionPayload{OptionID: o.ID, OptionText: o.Text, OptionImageURL: o.ImageURL})
				}
				payload.CurrentQuestion = &qp
			}
		}
		remaining := remainingSeconds(sess.TimerEndTimeMs)
		payload.RemainingTime = &remaining
	case ok && sess.State == model.SessionReveal:
		if reveal := actor.LastReveal(); reveal != nil {
			payload.CorrectOptions = reveal.CorrectOptions
			stats := reveal.Statistics
			payload.Statistics = &stats
		}
	}

	s.router.PublishParticipant(ctx, msg.SessionID, msg.ParticipantID, wsproto.Event{Event: wsproto.EventSessionRecovered, Payload: *payload})
	s.router.PublishController(ctx, msg.SessionID, wsproto.Event{
		Event: wsproto.EventParticipantStatus,
		Payload: wsproto.ParticipantStatusChangedPayload{
			ParticipantID: p.ID, Nickname: p.Nickname, Status: "connected", Timestamp: time.Now().UnixMilli(),
		},
	})

	return payload, nil
}

// leaderboardSnapshot rebuilds the top-N wire entries from the fast
// store's sorted set plus each member's hot record, since the sorted
// set itself carries only member/score pairs.
func (s *Service) leaderboardSnapshot(ctx context.Context, sessionID string) []wsproto.LeaderboardEntry {
	top, err := s.store.TopLeaderboard(ctx, sessionID, s.leaderN)
	if err != nil {
		return nil
	}
	entries := make([]wsproto.LeaderboardEntry, 0, len(top))
	for i, z := range top {
		participantID, _ := z.Member.(string)
		p, err := s.store.GetParticipant(ctx, sessionID, participantID)
		if err != nil {
			continue
		}
		entries = append(entries, wsproto.LeaderboardEntry{
			Rank: i + 1, ParticipantID: p.ID, Nickname: p.Nickname,
			TotalScore: p.TotalScore, StreakCount: p.StreakCount, TotalTimeMs: p.TotalTimeMs,
		})
	}
	return entries
}

func remainingSeconds(timerEndTimeMs int64) int {
	if timerEndTimeMs == 0 {
		return 0
	}
	remaining := time.Until(time.UnixMilli(timerEndTimeMs))
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return secs
}
