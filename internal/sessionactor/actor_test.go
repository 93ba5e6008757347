package sessionactor

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
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/scoring"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

type fakeAuditRepo struct{}

func (fakeAuditRepo) CreateAuditLog(ctx context.Context, entry *model.AuditLog) error { return nil }
func (fakeAuditRepo) GetAuditLogsBySessionID(ctx context.Context, sessionID string) ([]*model.AuditLog, error) {
	return nil, nil
}

func twoQuestionQuiz() *model.Quiz {
	return &model.Quiz{
		ID:   "quiz-1",
		Type: model.QuizTypeRegular,
		Questions: []model.Question{
			{
				ID: "q1", Type: model.QuestionMultipleChoice, TimeLimitSec: 1,
				Options: []model.Option{{ID: "optA", Text: "A", IsCorrect: true}, {ID: "optB", Text: "B"}},
				Scoring: model.ScoringConfig{BasePoints: 100},
			},
			{
				ID: "q2", Type: model.QuestionMultipleChoice, TimeLimitSec: 1,
				Options: []model.Option{{ID: "optA", Text: "A", IsCorrect: true}, {ID: "optB", Text: "B"}},
				Scoring: model.ScoringConfig{BasePoints: 100},
			},
		},
	}
}

func newTestActor(t *testing.T, quiz *model.Quiz) (*Actor, context.Context, context.CancelFunc) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := faststore.New(rdb)
	router := fanout.NewRouter(rdb, zap.NewNop())
	auditLogger := audit.New(fakeAuditRepo{}, zap.NewNop())

	sess := model.NewSession("sess-1", quiz.ID, "ABCD", "host-1")
	a := New(sess, quiz, Deps{
		Store: store, Router: router, Audit: auditLogger, Log: zap.NewNop(),
		TickInterval: 10 * time.Millisecond, ReconnectGrace: time.Minute, ScoringPopTimeout: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	t.Cleanup(func() { cancel(); a.Close() })
	return a, ctx, cancel
}

func TestStartQuizByNonHostIsRejected(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	err := a.StartQuiz(ctx, "not-the-host")
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.InvalidState, kind)
}

func TestStartQuizBeginsFirstQuestion(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	require.NoError(t, a.StartQuiz(ctx, "host-1"))

	sess, _ := a.Snapshot()
	require.Equal(t, model.SessionActiveQuestion, sess.State)
	require.Equal(t, "q1", sess.CurrentQuestionID)
	require.True(t, sess.HasActiveTimer())
}

func TestJoinDuringLobbyIsActiveParticipant(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	p, err := a.Join(ctx, "p1", "Alice", "10.0.0.1")
	require.NoError(t, err)
	require.False(t, p.IsSpectator)

	sess, _ := a.Snapshot()
	require.Equal(t, 1, sess.ParticipantCount)
}

func TestJoinRejectsDuplicateNickname(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	_, err := a.Join(ctx, "p1", "Alice", "10.0.0.1")
	require.NoError(t, err)

	_, err = a.Join(ctx, "p2", "Alice", "10.0.0.2")
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.InvalidRequest, kind)
}

func TestJoinDuringActiveQuestionBecomesSpectator(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	require.NoError(t, a.StartQuiz(ctx, "host-1"))

	p, err := a.Join(ctx, "late1", "Late", "10.0.0.9")
	require.NoError(t, err)
	require.True(t, p.IsSpectator, "late joiners during an active question are spectators until the next question")
}

func TestJoinRejectedWhenLateJoinersDisabled(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	require.NoError(t, a.StartQuiz(ctx, "host-1"))
	require.NoError(t, a.ToggleLateJoiners(ctx, "host-1", false))

	_, err := a.Join(ctx, "late1", "Late", "10.0.0.9")
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.InvalidState, kind)
}

func TestScoreCommitUpdatesParticipantTotalsAndStreak(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	_, err := a.Join(ctx, "p1", "Alice", "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, a.StartQuiz(ctx, "host-1"))

	answer := &model.Answer{ID: "ans-1", SessionID: "sess-1", ParticipantID: "p1", QuestionID: "q1", SelectedOptionIDs: []string{"optA"}}
	result := scoring.Result{IsCorrect: true, CorrectnessFraction: 1, BasePoints: 100, PointsAwarded: 100}
	a.notifyScoreCommit(scoreCommit{answer: answer, result: result, question: a.quiz.Question("q1")})

	require.Eventually(t, func() bool {
		p, ok := a.Participant("p1")
		return ok && p.TotalScore == 100 && p.StreakCount == 1
	}, time.Second, 10*time.Millisecond)
}

func TestKickParticipantRemovesFromSession(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	_, err := a.Join(ctx, "p1", "Alice", "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, a.KickParticipant(ctx, "host-1", "p1", "disruptive"))

	p, ok := a.Participant("p1")
	require.True(t, ok)
	require.False(t, p.IsActive)

	sess, _ := a.Snapshot()
	require.Equal(t, 0, sess.ParticipantCount)
}

func TestBanParticipantRecordsBannedIP(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	_, err := a.Join(ctx, "p1", "Alice", "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, a.BanParticipant(ctx, "host-1", "p1", "cheating"))

	sess, _ := a.Snapshot()
	require.True(t, sess.BannedIPs["10.0.0.1"])

	_, err = a.Join(ctx, "p2", "Alice2", "10.0.0.1")
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.ParticipantBanned, kind)
}

func TestTimerExpiryTransitionsToReveal(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	require.NoError(t, a.StartQuiz(ctx, "host-1"))

	require.Eventually(t, func() bool {
		sess, _ := a.Snapshot()
		return sess.State == model.SessionReveal
	}, 3*time.Second, 20*time.Millisecond, "timer expiry must move ACTIVE_QUESTION to REVEAL")
}

func TestNextQuestionAdvancesAfterReveal(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	require.NoError(t, a.StartQuiz(ctx, "host-1"))

	require.Eventually(t, func() bool {
		sess, _ := a.Snapshot()
		return sess.State == model.SessionReveal
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, a.NextQuestion(ctx, "host-1"))
	sess, _ := a.Snapshot()
	require.Equal(t, "q2", sess.CurrentQuestionID)
	require.Equal(t, model.SessionActiveQuestion, sess.State)
}

func TestNextQuestionEndsQuizAfterLastQuestion(t *testing.T) {
	quiz := twoQuestionQuiz()
	quiz.Questions = quiz.Questions[:1]
	a, ctx, _ := newTestActor(t, quiz)
	require.NoError(t, a.StartQuiz(ctx, "host-1"))

	require.Eventually(t, func() bool {
		sess, _ := a.Snapshot()
		return sess.State == model.SessionReveal
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, a.NextQuestion(ctx, "host-1"))
	sess, _ := a.Snapshot()
	require.Equal(t, model.SessionEnded, sess.State)
}

func TestVoidQuestionReversesAwardedPoints(t *testing.T) {
	a, ctx, _ := newTestActor(t, twoQuestionQuiz())
	_, err := a.Join(ctx, "p1", "Alice", "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, a.StartQuiz(ctx, "host-1"))

	answer := &model.Answer{ID: "ans-1", SessionID: "sess-1", ParticipantID: "p1", QuestionID: "q1"}
	result := scoring.Result{IsCorrect: true, CorrectnessFraction: 1, BasePoints: 100, PointsAwarded: 100}
	a.notifyScoreCommit(scoreCommit{answer: answer, result: result, question: a.quiz.Question("q1")})

	require.Eventually(t, func() bool {
		p, ok := a.Participant("p1")
		return ok && p.TotalScore == 100
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, a.VoidQuestion(ctx, "host-1", wsproto.VoidQuestionMsg{QuestionID: "q1", Reason: "bad question"}))

	p, ok := a.Participant("p1")
	require.True(t, ok)
	require.Equal(t, 0, p.TotalScore)
}

func TestShuffledOptionsForParticipantIsDeterministic(t *testing.T) {
	opts := []model.Option{
		{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}, {ID: "d", Text: "D"},
	}

	first := ShuffledOptionsForParticipant(opts, "p1", "q1")
	second := ShuffledOptionsForParticipant(opts, "p1", "q1")
	require.Equal(t, idsOf(first), idsOf(second), "same participant/question must reshuffle identically")

	other := ShuffledOptionsForParticipant(opts, "p2", "q1")
	require.ElementsMatch(t, idsOf(first), idsOf(other), "shuffle must still be a permutation of the same options")
}

func idsOf(opts []model.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.ID
	}
	return out
}
