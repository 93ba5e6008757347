package handler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/audit"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/config"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/faststore"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/metrics"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

type fakeAuditRepo struct{}

func (fakeAuditRepo) CreateAuditLog(ctx context.Context, entry *model.AuditLog) error { return nil }
func (fakeAuditRepo) GetAuditLogsBySessionID(ctx context.Context, sessionID string) ([]*model.AuditLog, error) {
	return nil, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := faststore.New(rdb)
	router := fanout.NewRouter(rdb, zap.NewNop())
	auditLogger := audit.New(fakeAuditRepo{}, zap.NewNop())
	metricsBroadcaster := metrics.New(router, zap.NewNop(), time.Hour)

	return NewRegistry(store, router, auditLogger, metricsBroadcaster, zap.NewNop(), config.SessionConfig{
		TickInterval: 10 * time.Millisecond, ReconnectGraceWindow: time.Minute,
	}, nil, nil, nil)
}

func testQuiz() *model.Quiz {
	return &model.Quiz{
		ID:   "quiz-1",
		Type: model.QuizTypeRegular,
		Questions: []model.Question{
			{
				ID: "q1", Type: model.QuestionMultipleChoice, TimeLimitSec: 1,
				Options: []model.Option{{ID: "optA", Text: "A", IsCorrect: true}, {ID: "optB", Text: "B"}},
				Scoring: model.ScoringConfig{BasePoints: 100},
			},
		},
	}
}

func TestRegistryStartRegistersActor(t *testing.T) {
	r := newTestRegistry(t)
	sess := model.NewSession("sess-1", "quiz-1", "ABCD", "host-1")

	actor := r.Start(context.Background(), sess, testQuiz())
	t.Cleanup(func() { r.Retire(sess.ID) })

	got, ok := r.Get(sess.ID)
	require.True(t, ok)
	require.Same(t, actor, got)
}

func TestRegistryGetMissingSession(t *testing.T) {
	r := newTestRegistry(t)
	_, ok := r.Get("does-not-exist")
	require.False(t, ok)
}

func TestRegistryRetireRemovesActor(t *testing.T) {
	r := newTestRegistry(t)
	sess := model.NewSession("sess-1", "quiz-1", "ABCD", "host-1")
	r.Start(context.Background(), sess, testQuiz())

	r.Retire(sess.ID)

	_, ok := r.Get(sess.ID)
	require.False(t, ok)
}

func TestRegistryRetireIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	sess := model.NewSession("sess-1", "quiz-1", "ABCD", "host-1")
	r.Start(context.Background(), sess, testQuiz())

	r.Retire(sess.ID)
	require.NotPanics(t, func() { r.Retire(sess.ID) })
}

func TestRegistryWatchForEndRetiresOnSessionEnded(t *testing.T) {
	r := newTestRegistry(t)
	sess := model.NewSession("sess-1", "quiz-1", "ABCD", "host-1")
	actor := r.Start(context.Background(), sess, testQuiz())

	require.NoError(t, actor.StartQuiz(context.Background(), "host-1"))
	require.NoError(t, actor.EndQuiz(context.Background(), "host-1"))

	require.Eventually(t, func() bool {
		_, ok := r.Get(sess.ID)
		return !ok
	}, 7*time.Second, 50*time.Millisecond)
}
