package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/apperr"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/audit"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/faststore"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/sessionactor"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

type noopAuditRepo struct{}

func (noopAuditRepo) CreateAuditLog(ctx context.Context, entry *model.AuditLog) error { return nil }
func (noopAuditRepo) GetAuditLogsBySessionID(ctx context.Context, sessionID string) ([]*model.AuditLog, error) {
	return nil, nil
}

func newTestService(t *testing.T, actors ActorLookup) (*Service, *faststore.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := faststore.New(rdb)
	router := fanout.NewRouter(rdb, zap.NewNop())
	auditLogger := audit.New(noopAuditRepo{}, zap.NewNop())
	if actors == nil {
		actors = func(string) (*sessionactor.Actor, bool) { return nil, false }
	}
	return New(store, router, auditLogger, zap.NewNop(), actors, time.Minute), store
}

func TestRecoverRejectsUnknownSession(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.Recover(context.Background(), wsproto.ReconnectSessionMsg{SessionID: "sess-1", ParticipantID: "p1"}, "sock-2")
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.SessionNotFound, kind)
}

func TestRecoverRejectsEndedSession(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	sess := model.NewSession("sess-1", "quiz-1", "ABCD", "host-1")
	sess.State = model.SessionEnded
	require.NoError(t, store.SaveSession(ctx, sess))

	_, err := svc.Recover(ctx, wsproto.ReconnectSessionMsg{SessionID: "sess-1", ParticipantID: "p1"}, "sock-2")
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.SessionEnded, kind)
}

func TestRecoverRejectsBannedParticipant(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	sess := model.NewSession("sess-1", "quiz-1", "ABCD", "host-1")
	require.NoError(t, store.SaveSession(ctx, sess))
	p := model.NewParticipant("p1", "sess-1", "Alice", "10.0.0.1")
	p.IsBanned = true
	require.NoError(t, store.SaveParticipant(ctx, "sess-1", p, time.Minute))

	_, err := svc.Recover(ctx, wsproto.ReconnectSessionMsg{SessionID: "sess-1", ParticipantID: "p1"}, "sock-2")
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.ParticipantBanned, kind)
}

func TestRecoverDuringLobbyRestoresScoreAndRank(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	sess := model.NewSession("sess-1", "quiz-1", "ABCD", "host-1")
	require.NoError(t, store.SaveSession(ctx, sess))

	p := model.NewParticipant("p1", "sess-1", "Alice", "10.0.0.1")
	p.TotalScore = 250
	p.StreakCount = 2
	require.NoError(t, store.SaveParticipant(ctx, "sess-1", p, time.Minute))
	require.NoError(t, store.UpdateLeaderboard(ctx, "sess-1", "p1", p.LeaderboardScore()))

	payload, err := svc.Recover(ctx, wsproto.ReconnectSessionMsg{SessionID: "sess-1", ParticipantID: "p1"}, "sock-2")
	require.NoError(t, err)
	require.Equal(t, "LOBBY", payload.CurrentState)
	require.Equal(t, 250, payload.TotalScore)
	require.Equal(t, 1, payload.Rank)
	require.Len(t, payload.Leaderboard, 1)

	refreshed, err := store.GetParticipant(ctx, "sess-1", "p1")
	require.NoError(t, err)
	require.Equal(t, "sock-2", refreshed.SocketID)
}

func TestRecoverDuringActiveQuestionIncludesRemainingTime(t *testing.T) {
	quiz := &model.Quiz{ID: "quiz-1", Type: model.QuizTypeRegular, Questions: []model.Question{
		{ID: "q1", Type: model.QuestionMultipleChoice, TimeLimitSec: 30, Options: []model.Option{{ID: "optA", Text: "A", IsCorrect: true}}},
	}}
	sess := model.NewSession("sess-1", quiz.ID, "ABCD", "host-1")
	actor := sessionactor.New(sess, quiz, sessionactor.Deps{
		Store: nil, Router: nil, Audit: audit.New(noopAuditRepo{}, zap.NewNop()), Log: zap.NewNop(),
	})

	svc, store := newTestService(t, func(id string) (*sessionactor.Actor, bool) {
		if id == "sess-1" {
			return actor, true
		}
		return nil, false
	})
	ctx := context.Background()

	live := model.NewSession("sess-1", quiz.ID, "ABCD", "host-1")
	live.State = model.SessionActiveQuestion
	live.CurrentQuestionID = "q1"
	live.TimerEndTimeMs = time.Now().Add(20 * time.Second).UnixMilli()
	require.NoError(t, store.SaveSession(ctx, live))
	require.NoError(t, store.SaveParticipant(ctx, "sess-1", model.NewParticipant("p1", "sess-1", "Alice", "10.0.0.1"), time.Minute))

	payload, err := svc.Recover(ctx, wsproto.ReconnectSessionMsg{SessionID: "sess-1", ParticipantID: "p1"}, "sock-2")
	require.NoError(t, err)
	require.Equal(t, "ACTIVE_QUESTION", payload.CurrentState)
	require.NotNil(t, payload.RemainingTime)
	require.InDelta(t, 20, *payload.RemainingTime, 1)
	require.NotNil(t, payload.CurrentQuestion)
	require.Equal(t, "q1", payload.CurrentQuestion.QuestionID)
}

func TestRecoverDuringActiveQuestionReconstructsPerParticipantShuffle(t *testing.T) {
	quiz := &model.Quiz{ID: "quiz-1", Type: model.QuizTypeRegular, Questions: []model.Question{
		{
			ID: "q1", Type: model.QuestionMultipleChoice, TimeLimitSec: 30, ShuffleOptions: true,
			Options: []model.Option{
				{ID: "optA", Text: "A", IsCorrect: true}, {ID: "optB", Text: "B"},
				{ID: "optC", Text: "C"}, {ID: "optD", Text: "D"},
			},
		},
	}}
	sess := model.NewSession("sess-1", quiz.ID, "ABCD", "host-1")
	actor := sessionactor.New(sess, quiz, sessionactor.Deps{
		Audit: audit.New(noopAuditRepo{}, zap.NewNop()), Log: zap.NewNop(),
	})

	svc, store := newTestService(t, func(id string) (*sessionactor.Actor, bool) {
		if id == "sess-1" {
			return actor, true
		}
		return nil, false
	})
	ctx := context.Background()

	live := model.NewSession("sess-1", quiz.ID, "ABCD", "host-1")
	live.State = model.SessionActiveQuestion
	live.CurrentQuestionID = "q1"
	live.TimerEndTimeMs = time.Now().Add(20 * time.Second).UnixMilli()
	require.NoError(t, store.SaveSession(ctx, live))
	require.NoError(t, store.SaveParticipant(ctx, "sess-1", model.NewParticipant("p1", "sess-1", "Alice", "10.0.0.1"), time.Minute))

	payload, err := svc.Recover(ctx, wsproto.ReconnectSessionMsg{SessionID: "sess-1", ParticipantID: "p1"}, "sock-2")
	require.NoError(t, err)
	require.NotNil(t, payload.CurrentQuestion)

	expected := sessionactor.ShuffledOptionsForParticipant(quiz.Questions[0].Options, "p1", "q1")
	got := make([]string, len(payload.CurrentQuestion.Options))
	for i, o := range payload.CurrentQuestion.Options {
		got[i] = o.OptionID
	}
	want := make([]string, len(expected))
	for i, o := range expected {
		want[i] = o.ID
	}
	require.Equal(t, want, got, "reconnect must reconstruct the exact shuffle order the participant originally saw")
}
