package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DeusGroup/Leadr/internal/types/metric"
)

// Performance is one sales rep's aggregate line: raw totals per metric type
// plus the weighted score that makes them commensurable.
type Performance struct {
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	FirstName     string          `json:"first_name" db:"first_name"`
	LastName      string          `json:"last_name" db:"last_name"`
	Territory     *string         `json:"territory,omitempty" db:"territory"`
	TotalRevenue  decimal.Decimal `json:"total_revenue" db:"total_revenue"`
	TotalDeals    decimal.Decimal `json:"total_deals" db:"total_deals"`
	VoiceSeats    decimal.Decimal `json:"voice_seats" db:"voice_seats"`
	WeightedScore decimal.Decimal `json:"weighted_score" db:"weighted_score"`
}

type Analytics struct {
	TotalRevenue    decimal.Decimal `json:"total_revenue" db:"total_revenue"`
	TotalDeals      decimal.Decimal `json:"total_deals" db:"total_deals"`
	TotalVoiceSeats decimal.Decimal `json:"total_voice_seats" db:"total_voice_seats"`
	ActiveSalesReps int             `json:"active_sales_reps" db:"active_sales_reps"`
}

type TerritoryAnalytics struct {
	Territory string `json:"territory" db:"territory"`
	Analytics
}

type Goal struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	LeaderboardID *uuid.UUID      `json:"leaderboard_id,omitempty" db:"leaderboard_id"`
	MetricType    metric.Type     `json:"metric_type" db:"metric_type"`
	TargetValue   decimal.Decimal `json:"target_value" db:"target_value"`
	CurrentValue  decimal.Decimal `json:"current_value" db:"current_value"`
	Period        string          `json:"period" db:"period"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	EndDate       time.Time       `json:"end_date" db:"end_date"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

type CreateGoalRequest struct {
	UserID        uuid.UUID   `json:"user_id"`
	LeaderboardID *uuid.UUID  `json:"leaderboard_id"`
	MetricType    metric.Type `json:"metric_type"`
	TargetValue   string      `json:"target_value"`
	Period        string      `json:"period"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       time.Time   `json:"end_date"`
}

type UpdateGoalRequest struct {
	TargetValue *string    `json:"target_value"`
	IsActive    *bool      `json:"is_active"`
	EndDate     *time.Time `json:"end_date"`
}
