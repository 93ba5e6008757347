package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

func participants() []*model.Participant {
	return []*model.Participant{
		{ID: "p1", Nickname: "Alice", TotalScore: 500, TotalTimeMs: 1000},
		{ID: "p2", Nickname: "Bob", TotalScore: 900, TotalTimeMs: 2000},
		{ID: "p3", Nickname: "Carl", TotalScore: 900, TotalTimeMs: 1000}, // ties Bob on score, wins on time
		{ID: "p4", Nickname: "Spectator", TotalScore: 10000, IsSpectator: true},
	}
}

func TestLeaderboardOrderingAndRank(t *testing.T) {
	entries := Leaderboard(participants(), 10, map[string]int{"p3": 300})

	require.Len(t, entries, 3, "spectator excluded")
	require.Equal(t, "p3", entries[0].ParticipantID)
	require.Equal(t, "p2", entries[1].ParticipantID)
	require.Equal(t, "p1", entries[2].ParticipantID)
	require.Equal(t, 300, entries[0].LastQuestionScore)
	require.Equal(t, 1, entries[0].Rank)
}

func TestLeaderboardTopNTruncates(t *testing.T) {
	entries := Leaderboard(participants(), 1, nil)
	require.Len(t, entries, 1)
	require.Equal(t, "p3", entries[0].ParticipantID)
}

func TestRankOfUnknownParticipantReturnsZero(t *testing.T) {
	require.Equal(t, 0, RankOf(participants(), "nobody"))
	require.Equal(t, 2, RankOf(participants(), "p2"))
}

func TestEliminationCandidatesEveryQuestion(t *testing.T) {
	settings := &model.EliminationSettings{Percentage: 50, Frequency: model.EliminationEveryQuestion}
	ids := EliminationCandidates(participants(), settings, 1)
	require.Contains(t, ids, "p1", "lowest scorer must be eliminated")
	require.NotContains(t, ids, "p3")
}

func TestEliminationCandidatesRespectsFrequency(t *testing.T) {
	settings := &model.EliminationSettings{Percentage: 50, Frequency: model.EliminationEveryN, NPerElim: 3}
	require.Empty(t, EliminationCandidates(participants(), settings, 1))
	require.Empty(t, EliminationCandidates(participants(), settings, 2))
	require.NotEmpty(t, EliminationCandidates(participants(), settings, 3))
}

func TestEliminationCandidatesNeverClearsEntireField(t *testing.T) {
	settings := &model.EliminationSettings{Percentage: 100, Frequency: model.EliminationEveryQuestion}
	ids := EliminationCandidates(participants(), settings, 1)
	require.Len(t, ids, 2, "must leave at least one active participant")
}

func TestEliminationCandidatesNilSettings(t *testing.T) {
	require.Nil(t, EliminationCandidates(participants(), nil, 1))
}
