package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/DeusGroup/Leadr/internal/apperrors"
	"github.com/DeusGroup/Leadr/internal/types/metric"
	"github.com/DeusGroup/Leadr/internal/types/sales"
)

// SalesService serves the sales analytics surface: per-rep performance lines,
// org and territory rollups, and goal tracking. Everything here is derived
// from the metric store; the only table it owns is sales_goals.
type SalesService struct {
	db *pgxpool.Pool
}

func NewSalesService(db *pgxpool.Pool) *SalesService {
	return &SalesService{db: db}
}

const performanceQuery = `
SELECT u.id, u.first_name, u.last_name, u.territory,
       COALESCE(SUM(m.value) FILTER (WHERE m.metric_type = 'revenue'), 0) AS total_revenue,
       COALESCE(SUM(m.value) FILTER (WHERE m.metric_type = 'deals'), 0) AS total_deals,
       COALESCE(SUM(m.value) FILTER (WHERE m.metric_type = 'voice_seats'), 0) AS voice_seats,
       COALESCE(SUM(m.value * m.weight), 0) AS weighted_score
FROM users u
LEFT JOIN metrics m ON m.user_id = u.id
WHERE u.user_type = 'sales_rep'
`

// GetPerformance lists every sales rep's totals, optionally scoped to a
// territory, ordered by weighted score.
func (s *SalesService) GetPerformance(ctx context.Context, territory *string) ([]*sales.Performance, error) {
	query := performanceQuery
	var args []any
	if territory != nil {
		args = append(args, *territory)
		query += fmt.Sprintf(" AND u.territory = $%d", len(args))
	}
	query += `
	GROUP BY u.id, u.first_name, u.last_name, u.territory
	ORDER BY weighted_score DESC
	`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sales performance: %w", err)
	}
	defer rows.Close()

	var perfs []*sales.Performance
	for rows.Next() {
		p := &sales.Performance{}
		err := rows.Scan(
			&p.UserID, &p.FirstName, &p.LastName, &p.Territory,
			&p.TotalRevenue, &p.TotalDeals, &p.VoiceSeats, &p.WeightedScore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sales performance: %w", err)
		}
		perfs = append(perfs, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales performance: %w", err)
	}

	if perfs == nil {
		perfs = []*sales.Performance{}
	}
	return perfs, nil
}

// GetUserPerformance returns one rep's totals.
func (s *SalesService) GetUserPerformance(ctx context.Context, userID uuid.UUID) (*sales.Performance, error) {
	query := performanceQuery + ` AND u.id = $1
	GROUP BY u.id, u.first_name, u.last_name, u.territory
	`

	p := &sales.Performance{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.FirstName, &p.LastName, &p.Territory,
		&p.TotalRevenue, &p.TotalDeals, &p.VoiceSeats, &p.WeightedScore,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("sales rep", userID.String())
		}
		return nil, fmt.Errorf("failed to fetch user sales performance: %w", err)
	}
	return p, nil
}

// GetAnalytics returns org-wide sales totals.
func (s *SalesService) GetAnalytics(ctx context.Context) (*sales.Analytics, error) {
	a := &sales.Analytics{}
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(m.value) FILTER (WHERE m.metric_type = 'revenue'), 0),
		       COALESCE(SUM(m.value) FILTER (WHERE m.metric_type = 'deals'), 0),
		       COALESCE(SUM(m.value) FILTER (WHERE m.metric_type = 'voice_seats'), 0),
		       COUNT(DISTINCT u.id) FILTER (WHERE u.status = 'active')
		FROM users u
		LEFT JOIN metrics m ON m.user_id = u.id
		WHERE u.user_type = 'sales_rep'
	`).Scan(&a.TotalRevenue, &a.TotalDeals, &a.TotalVoiceSeats, &a.ActiveSalesReps)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sales analytics: %w", err)
	}
	return a, nil
}

// GetTerritoryAnalytics breaks the org totals down per territory. Reps with
// no territory are excluded.
func (s *SalesService) GetTerritoryAnalytics(ctx context.Context) ([]*sales.TerritoryAnalytics, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.territory,
		       COALESCE(SUM(m.value) FILTER (WHERE m.metric_type = 'revenue'), 0),
		       COALESCE(SUM(m.value) FILTER (WHERE m.metric_type = 'deals'), 0),
		       COALESCE(SUM(m.value) FILTER (WHERE m.metric_type = 'voice_seats'), 0),
		       COUNT(DISTINCT u.id) FILTER (WHERE u.status = 'active')
		FROM users u
		LEFT JOIN metrics m ON m.user_id = u.id
		WHERE u.user_type = 'sales_rep' AND u.territory IS NOT NULL
		GROUP BY u.territory
		ORDER BY u.territory
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch territory analytics: %w", err)
	}
	defer rows.Close()

	var result []*sales.TerritoryAnalytics
	for rows.Next() {
		t := &sales.TerritoryAnalytics{}
		err := rows.Scan(&t.Territory, &t.TotalRevenue, &t.TotalDeals, &t.TotalVoiceSeats, &t.ActiveSalesReps)
		if err != nil {
			return nil, fmt.Errorf("failed to scan territory analytics: %w", err)
		}
		result = append(result, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating territory analytics: %w", err)
	}

	if result == nil {
		result = []*sales.TerritoryAnalytics{}
	}
	return result, nil
}

func (s *SalesService) CreateGoal(ctx context.Context, req *sales.CreateGoalRequest) (*sales.Goal, error) {
	if req.UserID == uuid.Nil {
		return nil, apperrors.NewValidation("user_id", "required")
	}
	if !metric.ValidType(req.MetricType) {
		return nil, apperrors.NewValidation("metric_type", fmt.Sprintf("unknown type %q", req.MetricType))
	}
	target, err := decimal.NewFromString(req.TargetValue)
	if err != nil {
		return nil, apperrors.NewValidation("target_value", fmt.Sprintf("not numeric: %q", req.TargetValue))
	}
	if req.Period == "" {
		return nil, apperrors.NewValidation("period", "required")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, apperrors.NewValidation("end_date", "must be after start_date")
	}

	var exists bool
	err = s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, req.UserID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return nil, apperrors.NewNotFound("user", req.UserID.String())
	}

	now := time.Now()
	g := &sales.Goal{
		ID:            uuid.New(),
		UserID:        req.UserID,
		LeaderboardID: req.LeaderboardID,
		MetricType:    req.MetricType,
		TargetValue:   target,
		Period:        req.Period,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO sales_goals (id, user_id, leaderboard_id, metric_type, target_value, period, start_date, end_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, g.ID, g.UserID, g.LeaderboardID, g.MetricType, g.TargetValue, g.Period, g.StartDate, g.EndDate, g.IsActive, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	g.CurrentValue, err = s.goalProgress(ctx, g)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// goalProgress computes the current value from the metric store: the sum of
// the goal's metric type recorded inside its window. Not stored, always
// derived.
func (s *SalesService) goalProgress(ctx context.Context, g *sales.Goal) (decimal.Decimal, error) {
	var current decimal.Decimal
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(value), 0)
		FROM metrics
		WHERE user_id = $1 AND metric_type = $2 AND recorded_at >= $3 AND recorded_at <= $4
	`, g.UserID, g.MetricType, g.StartDate, g.EndDate).Scan(&current)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute goal progress: %w", err)
	}
	return current, nil
}

func (s *SalesService) GetGoals(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*sales.Goal, error) {
	query := `
	SELECT id, user_id, leaderboard_id, metric_type, target_value, period, start_date, end_date, is_active, created_at, updated_at
	FROM sales_goals
	WHERE user_id = $1
	`
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*sales.Goal
	for rows.Next() {
		g := &sales.Goal{}
		err := rows.Scan(
			&g.ID, &g.UserID, &g.LeaderboardID, &g.MetricType, &g.TargetValue,
			&g.Period, &g.StartDate, &g.EndDate, &g.IsActive, &g.CreatedAt, &g.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}

	for _, g := range goals {
		g.CurrentValue, err = s.goalProgress(ctx, g)
		if err != nil {
			return nil, err
		}
	}

	if goals == nil {
		goals = []*sales.Goal{}
	}
	return goals, nil
}

func (s *SalesService) UpdateGoal(ctx context.Context, id uuid.UUID, req *sales.UpdateGoalRequest) (*sales.Goal, error) {
	var target *decimal.Decimal
	if req.TargetValue != nil {
		t, err := decimal.NewFromString(*req.TargetValue)
		if err != nil {
			return nil, apperrors.NewValidation("target_value", fmt.Sprintf("not numeric: %q", *req.TargetValue))
		}
		target = &t
	}

	query := `
	UPDATE sales_goals
	SET target_value = COALESCE($2, target_value),
	    is_active = COALESCE($3, is_active),
	    end_date = COALESCE($4, end_date),
	    updated_at = NOW()
	WHERE id = $1
	RETURNING id, user_id, leaderboard_id, metric_type, target_value, period, start_date, end_date, is_active, created_at, updated_at
	`

	g := &sales.Goal{}
	err := s.db.QueryRow(ctx, query, id, target, req.IsActive, req.EndDate).Scan(
		&g.ID, &g.UserID, &g.LeaderboardID, &g.MetricType, &g.TargetValue,
		&g.Period, &g.StartDate, &g.EndDate, &g.IsActive, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("goal", id.String())
		}
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}

	g.CurrentValue, err = s.goalProgress(ctx, g)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *SalesService) DeleteGoal(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sales_goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("goal", id.String())
	}
	return nil
}
