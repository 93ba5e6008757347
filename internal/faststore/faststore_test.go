package faststore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb)
}

func TestSaveAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := model.NewSession("sess-1", "quiz-1", "ABCD", "host-1")
	require.NoError(t, s.SaveSession(ctx, sess))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, sess.ID, got.ID)
	require.Equal(t, model.SessionLobby, got.State)
}

func TestGetSessionMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, redis.Nil)
}

func TestTryClaimAnswerSlotIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.TryClaimAnswerSlot(ctx, "p1", "q1", time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	second, err := s.TryClaimAnswerSlot(ctx, "p1", "q1", time.Minute)
	require.NoError(t, err)
	require.False(t, second, "a second claim for the same participant/question must be rejected")
}

func TestLeaderboardOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateLeaderboard(ctx, "sess-1", "p1", 100))
	require.NoError(t, s.UpdateLeaderboard(ctx, "sess-1", "p2", 250))
	require.NoError(t, s.UpdateLeaderboard(ctx, "sess-1", "p3", 175))

	top, err := s.TopLeaderboard(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, "p2", top[0].Member)
	require.Equal(t, "p3", top[1].Member)
	require.Equal(t, "p1", top[2].Member)
}

func TestAnswerBufferDrainIsDestructive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BufferAnswer(ctx, "sess-1", &model.Answer{ID: "a1", QuestionID: "q1"}))
	require.NoError(t, s.BufferAnswer(ctx, "sess-1", &model.Answer{ID: "a2", QuestionID: "q1"}))

	drained, err := s.DrainAnswerBuffer(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, drained, 2)

	again, err := s.DrainAnswerBuffer(ctx, "sess-1")
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestBanIP(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	banned, err := s.IsIPBanned(ctx, "sess-1", "10.0.0.1")
	require.NoError(t, err)
	require.False(t, banned)

	require.NoError(t, s.BanIP(ctx, "sess-1", "10.0.0.1"))

	banned, err = s.IsIPBanned(ctx, "sess-1", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, banned)
}

func TestParticipantHotRecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := model.NewParticipant("p1", "sess-1", "Alice", "10.0.0.1")
	require.NoError(t, s.SaveParticipant(ctx, "sess-1", p, 5*time.Minute))

	got, err := s.GetParticipant(ctx, "sess-1", "p1")
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Nickname)

	sessionID, err := s.SessionIDForParticipant(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", sessionID)
}
