package scoring

import (
	"sort"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/wsproto"
)

// Leaderboard sorts every non-spectator participant by composite score
// (spec.md I5) and returns the top n as wire payload entries. Eliminated
// participants are spectators and so are left out; IsActive is not checked.
// lastQuestionScores maps participant ID to the points just awarded for
// the question that triggered this leaderboard update; it may be nil
// between questions (e.g. on a participant join).
func Leaderboard(participants []*model.Participant, n int, lastQuestionScores map[string]int) []wsproto.LeaderboardEntry {
	ranked := rank(participants)
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}

	entries := make([]wsproto.LeaderboardEntry, len(ranked))
	for i, p := range ranked {
		entries[i] = wsproto.LeaderboardEntry{
			Rank:              i + 1,
			ParticipantID:     p.ID,
			Nickname:          p.Nickname,
			TotalScore:        p.TotalScore,
			LastQuestionScore: lastQuestionScores[p.ID],
			StreakCount:       p.StreakCount,
			TotalTimeMs:       p.TotalTimeMs,
		}
	}
	return entries
}

func rank(participants []*model.Participant) []*model.Participant {
	ranked := make([]*model.Participant, 0, len(participants))
	for _, p := range participants {
		if p.IsSpectator {
			continue
		}
		ranked = append(ranked, p)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].LeaderboardScore() > ranked[j].LeaderboardScore()
	})
	return ranked
}

// RankOf returns a participant's 1-based rank among non-spectator participants,
// or 0 if not found (used for session_recovered payloads).
func RankOf(participants []*model.Participant, participantID string) int {
	ranked := rank(participants)
	for i, p := range ranked {
		if p.ID == participantID {
			return i + 1
		}
	}
	return 0
}

// EliminationCandidates selects which participants to eliminate after a
// reveal, per the quiz's EliminationSettings (spec.md §4.G elimination
// lifecycle): the bottom Percentage of the still-active field, evaluated
// either every question or every N questions.
func EliminationCandidates(participants []*model.Participant, settings *model.EliminationSettings, questionsCompleted int) []string {
	if settings == nil {
		return nil
	}
	if settings.Frequency == model.EliminationEveryN && settings.NPerElim > 0 {
		if questionsCompleted%settings.NPerElim != 0 {
			return nil
		}
	}

	ranked := rank(participants)
	if len(ranked) == 0 {
		return nil
	}

	cut := len(ranked) * settings.Percentage / 100
	if cut <= 0 {
		return nil
	}
	if cut >= len(ranked) {
		cut = len(ranked) - 1 // never eliminate the entire remaining field
	}

	ids := make([]string, 0, cut)
	for _, p := range ranked[len(ranked)-cut:] {
		ids = append(ids, p.ID)
	}
	return ids
}
