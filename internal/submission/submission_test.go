package submission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/apperr"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/fanout"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/faststore"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

func newTestPipeline(t *testing.T, onAnswered AllAnsweredNotifier) (*Pipeline, *faststore.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := faststore.New(rdb)
	router := fanout.NewRouter(rdb, zap.NewNop())
	return New(store, router, zap.NewNop(), time.Minute, onAnswered), store
}

func activeQuestionSession() *model.Session {
	sess := model.NewSession("sess-1", "quiz-1", "ABCD", "host-1")
	sess.State = model.SessionActiveQuestion
	sess.CurrentQuestionID = "q1"
	sess.CurrentQuestionStartTime = time.Now().Add(-2 * time.Second)
	sess.TimerEndTimeMs = time.Now().Add(10 * time.Second).UnixMilli()
	sess.ParticipantCount = 1
	sess.AnswerEligibleCount = 1
	sess.ActiveParticipants["p1"] = true
	return sess
}

func TestSubmitAcceptsValidAnswer(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	ctx := context.Background()

	sess := activeQuestionSession()
	require.NoError(t, store.SaveSession(ctx, sess))
	require.NoError(t, store.SaveParticipant(ctx, sess.ID, model.NewParticipant("p1", sess.ID, "Alice", "10.0.0.1"), time.Minute))

	ans, err := p.Submit(ctx, sess.ID, "p1", wsproto.SubmitAnswerMsg{QuestionID: "q1", SelectedOptions: []string{"optA"}}, time.Now())
	require.NoError(t, err)
	require.Equal(t, "q1", ans.QuestionID)

	pending, err := store.GetPendingAnswer(ctx, sess.ID, ans.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"optA"}, pending.SelectedOptionIDs)

	workItem, err := store.PopScoringWork(ctx, sess.ID, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, ans.ID, workItem)
}

func TestSubmitRejectsDuplicateAnswer(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	ctx := context.Background()

	sess := activeQuestionSession()
	require.NoError(t, store.SaveSession(ctx, sess))
	require.NoError(t, store.SaveParticipant(ctx, sess.ID, model.NewParticipant("p1", sess.ID, "Alice", "10.0.0.1"), time.Minute))

	msg := wsproto.SubmitAnswerMsg{QuestionID: "q1", SelectedOptions: []string{"optA"}}
	_, err := p.Submit(ctx, sess.ID, "p1", msg, time.Now())
	require.NoError(t, err)

	_, err = p.Submit(ctx, sess.ID, "p1", msg, time.Now())
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.AlreadySubmitted, kind)
}

func TestSubmitRejectsExpiredTimer(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	ctx := context.Background()

	sess := activeQuestionSession()
	sess.TimerEndTimeMs = time.Now().Add(-time.Second).UnixMilli()
	require.NoError(t, store.SaveSession(ctx, sess))
	require.NoError(t, store.SaveParticipant(ctx, sess.ID, model.NewParticipant("p1", sess.ID, "Alice", "10.0.0.1"), time.Minute))

	_, err := p.Submit(ctx, sess.ID, "p1", wsproto.SubmitAnswerMsg{QuestionID: "q1", SelectedOptions: []string{"optA"}}, time.Now())
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.TimeExpired, kind)
}

func TestSubmitRejectsWrongQuestion(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	ctx := context.Background()

	sess := activeQuestionSession()
	require.NoError(t, store.SaveSession(ctx, sess))
	require.NoError(t, store.SaveParticipant(ctx, sess.ID, model.NewParticipant("p1", sess.ID, "Alice", "10.0.0.1"), time.Minute))

	_, err := p.Submit(ctx, sess.ID, "p1", wsproto.SubmitAnswerMsg{QuestionID: "other-question", SelectedOptions: []string{"optA"}}, time.Now())
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.InvalidQuestion, kind)
}

func TestSubmitRejectsEmptyPayload(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	ctx := context.Background()

	sess := activeQuestionSession()
	require.NoError(t, store.SaveSession(ctx, sess))

	_, err := p.Submit(ctx, sess.ID, "p1", wsproto.SubmitAnswerMsg{QuestionID: "q1"}, time.Now())
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.InvalidSchema, kind)
}

func TestSubmitTriggersAllAnsweredOnLastParticipant(t *testing.T) {
	var notified []string
	p, store := newTestPipeline(t, func(sessionID, questionID string) {
		notified = append(notified, sessionID+":"+questionID)
	})
	ctx := context.Background()

	sess := activeQuestionSession() // AnswerEligibleCount == 1
	require.NoError(t, store.SaveSession(ctx, sess))
	require.NoError(t, store.SaveParticipant(ctx, sess.ID, model.NewParticipant("p1", sess.ID, "Alice", "10.0.0.1"), time.Minute))

	_, err := p.Submit(ctx, sess.ID, "p1", wsproto.SubmitAnswerMsg{QuestionID: "q1", SelectedOptions: []string{"optA"}}, time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{"sess-1:q1"}, notified)
}

func TestSubmitTriggersAllAnsweredDespiteSpectator(t *testing.T) {
	var notified []string
	p, store := newTestPipeline(t, func(sessionID, questionID string) {
		notified = append(notified, sessionID+":"+questionID)
	})
	ctx := context.Background()

	sess := activeQuestionSession()
	sess.ParticipantCount = 2 // p1 eligible, p2 a spectator
	sess.AnswerEligibleCount = 1
	sess.ActiveParticipants["p2"] = true
	require.NoError(t, store.SaveSession(ctx, sess))
	require.NoError(t, store.SaveParticipant(ctx, sess.ID, model.NewParticipant("p1", sess.ID, "Alice", "10.0.0.1"), time.Minute))
	spectator := model.NewParticipant("p2", sess.ID, "Bob", "10.0.0.2")
	spectator.IsSpectator = true
	require.NoError(t, store.SaveParticipant(ctx, sess.ID, spectator, time.Minute))

	_, err := p.Submit(ctx, sess.ID, "p1", wsproto.SubmitAnswerMsg{QuestionID: "q1", SelectedOptions: []string{"optA"}}, time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{"sess-1:q1"}, notified, "the lone eligible participant answering should still complete the round despite the spectator")
}

func TestSubmitRejectsEliminatedParticipant(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	ctx := context.Background()

	sess := activeQuestionSession()
	require.NoError(t, store.SaveSession(ctx, sess))
	elim := model.NewParticipant("p1", sess.ID, "Alice", "10.0.0.1")
	elim.IsEliminated = true
	require.NoError(t, store.SaveParticipant(ctx, sess.ID, elim, time.Minute))

	_, err := p.Submit(ctx, sess.ID, "p1", wsproto.SubmitAnswerMsg{QuestionID: "q1", SelectedOptions: []string{"optA"}}, time.Now())
	kind, _ := apperr.As(err)
	require.Equal(t, apperr.ParticipantEliminated, kind)
}
