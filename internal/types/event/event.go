package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DeusGroup/Leadr/internal/types/metric"
)

type Type string

const (
	TypeMetricRecorded    Type = "metric_recorded"
	TypeAchievementEarned Type = "achievement_earned"
)

// Event is the outbound payload the relay broadcasts to live-activity
// consumers. MetricType/Value are set for metric events, AchievementName for
// achievement events.
type Event struct {
	Type            Type             `json:"type"`
	UserID          uuid.UUID        `json:"user_id"`
	DisplayName     string           `json:"display_name"`
	MetricType      *metric.Type     `json:"metric_type,omitempty"`
	Value           *decimal.Decimal `json:"value,omitempty"`
	AchievementName *string          `json:"achievement_name,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}
