package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DeusGroup/Leadr/internal/types/leaderboard"
	"github.com/DeusGroup/Leadr/internal/types/metric"
)

// UserScore is one user's aggregate score within a leaderboard.
type UserScore struct {
	UserID uuid.UUID       `json:"user_id"`
	Score  decimal.Decimal `json:"score"`
}

// computeScores aggregates a leaderboard's metric set into per-user scores.
//
//   - employee: sum of value over metrics of type points
//   - sales:    sum of value*weight over all metrics, any type
//   - mixed:    employeeWeight*pointsSum + salesWeight*weightedSum,
//     weights from settings, both defaulting to 0.5
//
// All arithmetic stays in decimal; results are rounded to the stored scale
// of 2 so repeated recomputation cannot drift. Users with no matching
// metrics are absent from the result: unranked, not last-ranked.
func computeScores(lb *leaderboard.Leaderboard, metrics []metric.Metric) ([]UserScore, error) {
	pointsSum := make(map[uuid.UUID]decimal.Decimal)
	weightedSum := make(map[uuid.UUID]decimal.Decimal)

	for _, m := range metrics {
		if m.MetricType == metric.TypePoints {
			pointsSum[m.UserID] = pointsSum[m.UserID].Add(m.Value)
		}
		weightedSum[m.UserID] = weightedSum[m.UserID].Add(m.Value.Mul(m.Weight))
	}

	var scores []UserScore

	switch lb.Type {
	case leaderboard.TypeEmployee:
		for userID, sum := range pointsSum {
			scores = append(scores, UserScore{UserID: userID, Score: sum.Round(2)})
		}
	case leaderboard.TypeSales:
		for userID, sum := range weightedSum {
			scores = append(scores, UserScore{UserID: userID, Score: sum.Round(2)})
		}
	case leaderboard.TypeMixed:
		settings, err := lb.ParseSettings()
		if err != nil {
			return nil, err
		}
		ew, sw := settings.MixedWeights()
		for userID, sum := range weightedSum {
			score := ew.Mul(pointsSum[userID]).Add(sw.Mul(sum))
			scores = append(scores, UserScore{UserID: userID, Score: score.Round(2)})
		}
	default:
		return nil, fmt.Errorf("unknown leaderboard type %q", lb.Type)
	}

	return scores, nil
}
