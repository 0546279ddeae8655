package services

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/DeusGroup/Leadr/internal/types/leaderboard"
)

// assignRanks turns computed scores into dense 1..N ranking rows.
//
// Order is descending by score with a deterministic tie-break on ascending
// user ID — never the incidental order of the underlying query. Ties do not
// share a rank number; first-by-tiebreak takes the lower one, so the rank
// set is always exactly {1..N}.
//
// previous maps userID to the rank from the last calculation pass. A user
// seen for the first time gets nil previousRank/rankChange, not zero;
// rankChange = previousRank - rank, positive meaning the user moved up.
func assignRanks(leaderboardID uuid.UUID, scores []UserScore, previous map[uuid.UUID]int, calculatedAt time.Time) []leaderboard.RankingRow {
	sorted := make([]UserScore, len(scores))
	copy(sorted, scores)

	slices.SortFunc(sorted, func(a, b UserScore) int {
		if c := b.Score.Cmp(a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID.String(), b.UserID.String())
	})

	rows := make([]leaderboard.RankingRow, len(sorted))
	for i, s := range sorted {
		row := leaderboard.RankingRow{
			LeaderboardID: leaderboardID,
			UserID:        s.UserID,
			Rank:          i + 1,
			Score:         s.Score,
			CalculatedAt:  calculatedAt,
		}
		if prev, ok := previous[s.UserID]; ok {
			change := prev - row.Rank
			row.PreviousRank = &prev
			row.RankChange = &change
		}
		rows[i] = row
	}
	return rows
}
