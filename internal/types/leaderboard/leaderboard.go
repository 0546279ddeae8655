package leaderboard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeEmployee Type = "employee"
	TypeSales    Type = "sales"
	TypeMixed    Type = "mixed"
)

func ValidType(t Type) bool {
	switch t {
	case TypeEmployee, TypeSales, TypeMixed:
		return true
	}
	return false
}

type Leaderboard struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	Type        Type       `json:"type" db:"type"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	StartDate   *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty" db:"end_date"`
	Settings    *string    `json:"settings,omitempty" db:"settings"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Settings is the parsed form of the settings JSON blob. Only the scoring
// weights matter to the core; display options ride along untouched.
type SettingsData struct {
	EmployeeWeight *decimal.Decimal `json:"employee_weight"`
	SalesWeight    *decimal.Decimal `json:"sales_weight"`
	DisplayCount   *int             `json:"display_count"`
	UpdateCadence  *string          `json:"update_cadence"`
}

// ParseSettings decodes the settings blob. A nil/empty blob is valid and
// yields defaults; corrupt JSON is the caller's ComputeError.
func (l *Leaderboard) ParseSettings() (*SettingsData, error) {
	data := &SettingsData{}
	if l.Settings == nil || *l.Settings == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(*l.Settings), data); err != nil {
		return nil, fmt.Errorf("failed to parse leaderboard settings: %w", err)
	}
	return data, nil
}

// MixedWeights returns the employee/sales weights for a mixed leaderboard,
// defaulting both to 0.5 when the settings omit them.
func (s *SettingsData) MixedWeights() (decimal.Decimal, decimal.Decimal) {
	half := decimal.New(5, -1)
	ew, sw := half, half
	if s.EmployeeWeight != nil {
		ew = *s.EmployeeWeight
	}
	if s.SalesWeight != nil {
		sw = *s.SalesWeight
	}
	return ew, sw
}

type CreateRequest struct {
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Type        Type       `json:"type"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Settings    *string    `json:"settings"`
}

type UpdateRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	IsActive    *bool      `json:"is_active"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Settings    *string    `json:"settings"`
}

// RankingRow is one materialized row of leaderboard_rankings. Fully derived:
// the table can be rebuilt from metrics + leaderboards at any time.
type RankingRow struct {
	LeaderboardID uuid.UUID       `json:"leaderboard_id" db:"leaderboard_id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	Rank          int             `json:"rank" db:"rank"`
	Score         decimal.Decimal `json:"score" db:"score"`
	PreviousRank  *int            `json:"previous_rank,omitempty" db:"previous_rank"`
	RankChange    *int            `json:"rank_change,omitempty" db:"rank_change"`
	CalculatedAt  time.Time       `json:"calculated_at" db:"calculated_at"`
}

// RankingEntry is a ranking row joined with user display fields.
type RankingEntry struct {
	RankingRow
	FirstName  string  `json:"first_name" db:"first_name"`
	LastName   string  `json:"last_name" db:"last_name"`
	Email      string  `json:"email" db:"email"`
	Department *string `json:"department,omitempty" db:"department"`
	Territory  *string `json:"territory,omitempty" db:"territory"`
}
