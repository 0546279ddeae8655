package metric

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePoints     Type = "points"
	TypeRevenue    Type = "revenue"
	TypeDeals      Type = "deals"
	TypeVoiceSeats Type = "voice_seats"
	TypeCustom     Type = "custom"
)

func ValidType(t Type) bool {
	switch t {
	case TypePoints, TypeRevenue, TypeDeals, TypeVoiceSeats, TypeCustom:
		return true
	}
	return false
}

// Metric is a single recorded performance event. Rows are append-mostly;
// value and weight are stored as DECIMAL(12,2)/DECIMAL(5,2) and must never
// pass through binary floats.
type Metric struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	LeaderboardID *uuid.UUID      `json:"leaderboard_id,omitempty" db:"leaderboard_id"`
	MetricType    Type            `json:"metric_type" db:"metric_type"`
	Value         decimal.Decimal `json:"value" db:"value"`
	Weight        decimal.Decimal `json:"weight" db:"weight"`
	Description   *string         `json:"description,omitempty" db:"description"`
	Source        *string         `json:"source,omitempty" db:"source"`
	RecordedAt    time.Time       `json:"recorded_at" db:"recorded_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

type RecordRequest struct {
	UserID        uuid.UUID  `json:"user_id"`
	LeaderboardID *uuid.UUID `json:"leaderboard_id"`
	MetricType    Type       `json:"metric_type"`
	Value         *string    `json:"value"`
	Weight        *string    `json:"weight"`
	Description   *string    `json:"description"`
	Source        *string    `json:"source"`
}

type UpdateRequest struct {
	Value       *string `json:"value"`
	Weight      *string `json:"weight"`
	Description *string `json:"description"`
}

// QueryFilter narrows a metric listing. Zero values mean "no filter".
type QueryFilter struct {
	UserID        *uuid.UUID
	LeaderboardID *uuid.UUID
	MetricType    *Type
	Limit         int
	Offset        int
}

// BulkError reports one rejected item of a bulk submission.
type BulkError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type BulkResult struct {
	Recorded []*Metric   `json:"recorded"`
	Errors   []BulkError `json:"errors"`
}
