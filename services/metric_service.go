package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/DeusGroup/Leadr/internal/apperrors"
	"github.com/DeusGroup/Leadr/internal/types/metric"
)

// MetricService is the append-only metric store. Every successful Record
// triggers achievement evaluation and a live-activity event; both are
// best-effort and never roll back the metric write.
type MetricService struct {
	db           *pgxpool.Pool
	achievements *AchievementService
	relay        *ActivityRelay
	leaderboards *LeaderboardService
}

func NewMetricService(db *pgxpool.Pool, achievements *AchievementService, relay *ActivityRelay) *MetricService {
	return &MetricService{db: db, achievements: achievements, relay: relay}
}

// SetLeaderboardService wires the recompute hook used after metric edits and
// deletes. Injected late from main.go to break the construction cycle.
func (s *MetricService) SetLeaderboardService(leaderboards *LeaderboardService) {
	s.leaderboards = leaderboards
}

// buildMetric validates a record request and shapes it into a row ready to
// insert. All failures are ValidationErrors; nothing touches the database.
func buildMetric(req *metric.RecordRequest) (*metric.Metric, error) {
	if req.UserID == uuid.Nil {
		return nil, apperrors.NewValidation("user_id", "required")
	}
	if !metric.ValidType(req.MetricType) {
		return nil, apperrors.NewValidation("metric_type", fmt.Sprintf("unknown type %q", req.MetricType))
	}
	if req.Value == nil || *req.Value == "" {
		return nil, apperrors.NewValidation("value", "required")
	}

	value, err := decimal.NewFromString(*req.Value)
	if err != nil {
		return nil, apperrors.NewValidation("value", fmt.Sprintf("not numeric: %q", *req.Value))
	}

	weight := decimal.NewFromInt(1)
	if req.Weight != nil && *req.Weight != "" {
		weight, err = decimal.NewFromString(*req.Weight)
		if err != nil {
			return nil, apperrors.NewValidation("weight", fmt.Sprintf("not numeric: %q", *req.Weight))
		}
	}

	now := time.Now()
	return &metric.Metric{
		ID:            uuid.New(),
		UserID:        req.UserID,
		LeaderboardID: req.LeaderboardID,
		MetricType:    req.MetricType,
		Value:         value,
		Weight:        weight,
		Description:   req.Description,
		Source:        req.Source,
		RecordedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Record persists one metric. The user must exist; the leaderboard, if
// referenced, must exist too. Achievement evaluation and event publishing run
// after the commit and their failures are logged, not surfaced — metric
// persistence is the durability boundary.
func (s *MetricService) Record(ctx context.Context, req *metric.RecordRequest) (*metric.Metric, error) {
	m, err := buildMetric(req)
	if err != nil {
		return nil, err
	}

	var firstName, lastName string
	err = s.db.QueryRow(ctx, `SELECT first_name, last_name FROM users WHERE id = $1`, m.UserID).
		Scan(&firstName, &lastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", m.UserID.String())
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if m.LeaderboardID != nil {
		var exists bool
		err = s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM leaderboards WHERE id = $1)`, *m.LeaderboardID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to look up leaderboard: %w", err)
		}
		if !exists {
			return nil, apperrors.NewNotFound("leaderboard", m.LeaderboardID.String())
		}
	}

	query := `
	INSERT INTO metrics (id, user_id, leaderboard_id, metric_type, value, weight, description, source, recorded_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.Exec(ctx, query,
		m.ID, m.UserID, m.LeaderboardID, m.MetricType, m.Value, m.Weight,
		m.Description, m.Source, m.RecordedAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record metric: %w", err)
	}

	if _, err := s.achievements.Evaluate(ctx, m.UserID, m.MetricType, m.Value); err != nil {
		log.Printf("Achievement evaluation failed for user %s: %v", m.UserID, err)
	}

	s.relay.PublishMetricRecorded(m.UserID, firstName+" "+lastName, m.MetricType, m.Value)

	return m, nil
}

// BulkRecord processes each item independently: invalid entries become
// per-item errors without aborting the valid ones. Cancellation stops
// processing between items; already-committed metrics stay committed and the
// remainder is reported as aborted.
func (s *MetricService) BulkRecord(ctx context.Context, items []*metric.RecordRequest) (*metric.BulkResult, error) {
	if len(items) == 0 {
		return nil, apperrors.NewValidation("metrics", "empty batch")
	}

	result := &metric.BulkResult{}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(items); j++ {
				result.Errors = append(result.Errors, metric.BulkError{Index: j, Reason: "aborted: " + err.Error()})
			}
			break
		}

		m, err := s.Record(ctx, item)
		if err != nil {
			if apperrors.IsValidation(err) || apperrors.IsNotFound(err) {
				result.Errors = append(result.Errors, metric.BulkError{Index: i, Reason: err.Error()})
				continue
			}
			return nil, fmt.Errorf("bulk record failed at item %d: %w", i, err)
		}
		result.Recorded = append(result.Recorded, m)
	}
	return result, nil
}

// Query lists metrics newest first, optionally filtered by user, leaderboard
// and type. Limit defaults to 50.
func (s *MetricService) Query(ctx context.Context, filter *metric.QueryFilter) ([]*metric.Metric, error) {
	var conditions []string
	var args []any

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.LeaderboardID != nil {
		args = append(args, *filter.LeaderboardID)
		conditions = append(conditions, fmt.Sprintf("leaderboard_id = $%d", len(args)))
	}
	if filter.MetricType != nil {
		if !metric.ValidType(*filter.MetricType) {
			return nil, apperrors.NewValidation("metric_type", fmt.Sprintf("unknown type %q", *filter.MetricType))
		}
		args = append(args, *filter.MetricType)
		conditions = append(conditions, fmt.Sprintf("metric_type = $%d", len(args)))
	}

	query := `
	SELECT id, user_id, leaderboard_id, metric_type, value, weight, description, source, recorded_at, created_at, updated_at
	FROM metrics
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY recorded_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*metric.Metric
	for rows.Next() {
		m := &metric.Metric{}
		err := rows.Scan(
			&m.ID, &m.UserID, &m.LeaderboardID, &m.MetricType, &m.Value, &m.Weight,
			&m.Description, &m.Source, &m.RecordedAt, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}

	if metrics == nil {
		metrics = []*metric.Metric{}
	}
	return metrics, nil
}

// Update is the administrative edit path. Metrics are append-mostly, so an
// edit must re-run the achievement sweep and recompute the owning
// leaderboard's rankings.
func (s *MetricService) Update(ctx context.Context, id uuid.UUID, req *metric.UpdateRequest) (*metric.Metric, error) {
	var value, weight *decimal.Decimal
	if req.Value != nil {
		v, err := decimal.NewFromString(*req.Value)
		if err != nil {
			return nil, apperrors.NewValidation("value", fmt.Sprintf("not numeric: %q", *req.Value))
		}
		value = &v
	}
	if req.Weight != nil {
		w, err := decimal.NewFromString(*req.Weight)
		if err != nil {
			return nil, apperrors.NewValidation("weight", fmt.Sprintf("not numeric: %q", *req.Weight))
		}
		weight = &w
	}

	query := `
	UPDATE metrics
	SET value = COALESCE($2, value),
	    weight = COALESCE($3, weight),
	    description = COALESCE($4, description),
	    updated_at = NOW()
	WHERE id = $1
	RETURNING id, user_id, leaderboard_id, metric_type, value, weight, description, source, recorded_at, created_at, updated_at
	`

	m := &metric.Metric{}
	err := s.db.QueryRow(ctx, query, id, value, weight, req.Description).Scan(
		&m.ID, &m.UserID, &m.LeaderboardID, &m.MetricType, &m.Value, &m.Weight,
		&m.Description, &m.Source, &m.RecordedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("metric", id.String())
		}
		return nil, fmt.Errorf("failed to update metric: %w", err)
	}

	s.recomputeAfterMutation(ctx, m.UserID, m.LeaderboardID)
	return m, nil
}

// Delete removes a metric and recomputes dependents. Grants stay: achievement
// awards are absorbing even when their qualifying metric disappears.
func (s *MetricService) Delete(ctx context.Context, id uuid.UUID) error {
	var userID uuid.UUID
	var leaderboardID *uuid.UUID
	err := s.db.QueryRow(ctx, `DELETE FROM metrics WHERE id = $1 RETURNING user_id, leaderboard_id`, id).
		Scan(&userID, &leaderboardID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("metric", id.String())
		}
		return fmt.Errorf("failed to delete metric: %w", err)
	}

	s.recomputeAfterMutation(ctx, userID, leaderboardID)
	return nil
}

func (s *MetricService) recomputeAfterMutation(ctx context.Context, userID uuid.UUID, leaderboardID *uuid.UUID) {
	if err := s.achievements.ReevaluateUser(ctx, userID); err != nil {
		log.Printf("Achievement sweep failed for user %s: %v", userID, err)
	}
	if leaderboardID != nil && s.leaderboards != nil {
		if _, err := s.leaderboards.Recalculate(ctx, *leaderboardID); err != nil {
			log.Printf("Ranking recompute failed for leaderboard %s: %v", *leaderboardID, err)
		}
	}
}
