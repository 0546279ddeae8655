package achievement

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DeusGroup/Leadr/internal/types/metric"
)

type Type string

const (
	TypeMilestone   Type = "milestone"
	TypeStreak      Type = "streak"
	TypeGoal        Type = "goal"
	TypeRecognition Type = "recognition"
)

func ValidType(t Type) bool {
	switch t {
	case TypeMilestone, TypeStreak, TypeGoal, TypeRecognition:
		return true
	}
	return false
}

// Criteria is the closed set of grant predicates. All fields optional:
//   - MetricType: only events of this type qualify
//   - MinValue: a single qualifying event must reach this value
//   - TotalRequired: the user's cumulative matching-type total must reach this
//
// Empty criteria pass trivially; guarding against that belongs to the
// catalog-authoring layer, which is why Validate runs at creation time.
type Criteria struct {
	MetricType    *metric.Type     `json:"metric_type,omitempty"`
	MinValue      *decimal.Decimal `json:"min_value,omitempty"`
	TotalRequired *decimal.Decimal `json:"total_required,omitempty"`
}

func (c *Criteria) Validate() error {
	if c.MetricType != nil && !metric.ValidType(*c.MetricType) {
		return fmt.Errorf("unknown metric type %q in criteria", *c.MetricType)
	}
	if c.MinValue != nil && c.MinValue.IsNegative() {
		return fmt.Errorf("criteria min_value must not be negative")
	}
	if c.TotalRequired != nil && c.TotalRequired.IsNegative() {
		return fmt.Errorf("criteria total_required must not be negative")
	}
	return nil
}

func ParseCriteria(raw *string) (*Criteria, error) {
	c := &Criteria{}
	if raw == nil || *raw == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(*raw), c); err != nil {
		return nil, fmt.Errorf("failed to parse achievement criteria: %w", err)
	}
	return c, nil
}

type Achievement struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Type        Type      `json:"type" db:"type"`
	Icon        *string   `json:"icon,omitempty" db:"icon"`
	PointsValue int       `json:"points_value" db:"points_value"`
	Criteria    *string   `json:"criteria,omitempty" db:"criteria"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// UserAchievement is a grant record. At most one exists per
// (user, achievement) pair; grants are absorbing and never revoked.
type UserAchievement struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	AchievementID uuid.UUID `json:"achievement_id" db:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at" db:"earned_at"`
}

type EarnedAchievement struct {
	Achievement
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

type CreateRequest struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Type        Type      `json:"type"`
	Icon        *string   `json:"icon"`
	PointsValue int       `json:"points_value"`
	Criteria    *Criteria `json:"criteria"`
}

type UpdateRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Icon        *string   `json:"icon"`
	PointsValue *int      `json:"points_value"`
	Criteria    *Criteria `json:"criteria"`
	IsActive    *bool     `json:"is_active"`
}
