package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/DeusGroup/Leadr/internal/apperrors"
	"github.com/DeusGroup/Leadr/internal/types/achievement"
	"github.com/DeusGroup/Leadr/internal/types/metric"
)

// AchievementService owns the achievement catalog and the grant engine.
// Granting is a set-insertion guarded by the unique (user_id, achievement_id)
// constraint: concurrent evaluations for the same user cannot double-grant.
type AchievementService struct {
	db    *pgxpool.Pool
	relay *ActivityRelay
}

func NewAchievementService(db *pgxpool.Pool, relay *ActivityRelay) *AchievementService {
	return &AchievementService{db: db, relay: relay}
}

// criteriaMatch decides whether a single triggering event satisfies the
// event-local parts of the criteria (type filter + minValue). The cumulative
// check needs metric history and lives in Evaluate.
//
// Evaluation is side-effect-free and re-runnable: the same inputs always give
// the same answer.
func criteriaMatch(c *achievement.Criteria, metricType metric.Type, value decimal.Decimal) bool {
	if c.MetricType != nil && *c.MetricType != metricType {
		return false
	}
	if c.MinValue != nil && value.LessThan(*c.MinValue) {
		return false
	}
	return true
}

// userTotal sums all of a user's historical metric values, optionally
// restricted to one type.
func (s *AchievementService) userTotal(ctx context.Context, userID uuid.UUID, metricType *metric.Type) (decimal.Decimal, error) {
	var total decimal.Decimal
	var err error
	if metricType != nil {
		err = s.db.QueryRow(ctx,
			`SELECT COALESCE(SUM(value), 0) FROM metrics WHERE user_id = $1 AND metric_type = $2`,
			userID, *metricType,
		).Scan(&total)
	} else {
		err = s.db.QueryRow(ctx,
			`SELECT COALESCE(SUM(value), 0) FROM metrics WHERE user_id = $1`,
			userID,
		).Scan(&total)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum user metrics: %w", err)
	}
	return total, nil
}

// grant inserts the award row if absent. Returns true when this call won the
// insert; a lost race or an existing grant is a silent no-op.
func (s *AchievementService) grant(ctx context.Context, userID, achievementID uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO user_achievements (id, user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, uuid.New(), userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("failed to insert grant: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Evaluate runs the active catalog against one triggering metric event and
// returns the achievements granted by this call. Invoked after every metric
// write for the affected user.
func (s *AchievementService) Evaluate(ctx context.Context, userID uuid.UUID, metricType metric.Type, value decimal.Decimal) ([]*achievement.Achievement, error) {
	catalog, err := s.List(ctx, nil, boolPtr(true))
	if err != nil {
		return nil, err
	}

	var firstName, lastName string
	if err := s.db.QueryRow(ctx, `SELECT first_name, last_name FROM users WHERE id = $1`, userID).
		Scan(&firstName, &lastName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", userID.String())
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	var granted []*achievement.Achievement
	for _, a := range catalog {
		criteria, err := achievement.ParseCriteria(a.Criteria)
		if err != nil {
			// Validated at authoring time; a corrupt row is skipped, not fatal.
			continue
		}

		if !criteriaMatch(criteria, metricType, value) {
			continue
		}

		if criteria.TotalRequired != nil {
			total, err := s.userTotal(ctx, userID, criteria.MetricType)
			if err != nil {
				return granted, err
			}
			if total.LessThan(*criteria.TotalRequired) {
				continue
			}
		}

		won, err := s.grant(ctx, userID, a.ID)
		if err != nil {
			return granted, err
		}
		if won {
			granted = append(granted, a)
			s.relay.PublishAchievementEarned(userID, firstName+" "+lastName, a.Name)
		}
	}
	return granted, nil
}

// ReevaluateUser sweeps every historical metric of a user through Evaluate's
// rules. Used after administrative metric edits or deletes. Grants are
// absorbing, so the sweep can only add awards, never retract one.
//
// Cost is O(all historical metrics) per call — a known scaling limit; an
// incremental cursor per user would be a non-breaking optimization.
func (s *AchievementService) ReevaluateUser(ctx context.Context, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx,
		`SELECT metric_type, value FROM metrics WHERE user_id = $1 ORDER BY recorded_at`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to load user metrics: %w", err)
	}
	defer rows.Close()

	type historyEntry struct {
		metricType metric.Type
		value      decimal.Decimal
	}
	var history []historyEntry
	for rows.Next() {
		var e historyEntry
		if err := rows.Scan(&e.metricType, &e.value); err != nil {
			return fmt.Errorf("failed to scan metric: %w", err)
		}
		history = append(history, e)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating metrics: %w", err)
	}

	for _, e := range history {
		if _, err := s.Evaluate(ctx, userID, e.metricType, e.value); err != nil {
			return err
		}
	}
	return nil
}

// Award is the manual admin path. Unlike engine grants, a duplicate here is
// surfaced as a ConflictError so the caller learns nothing changed.
func (s *AchievementService) Award(ctx context.Context, achievementID, userID uuid.UUID) (*achievement.UserAchievement, error) {
	a, err := s.GetByID(ctx, achievementID)
	if err != nil {
		return nil, err
	}

	var firstName, lastName string
	if err := s.db.QueryRow(ctx, `SELECT first_name, last_name FROM users WHERE id = $1`, userID).
		Scan(&firstName, &lastName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", userID.String())
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ua := &achievement.UserAchievement{
		ID:            uuid.New(),
		UserID:        userID,
		AchievementID: achievementID,
		EarnedAt:      time.Now(),
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO user_achievements (id, user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, ua.ID, ua.UserID, ua.AchievementID, ua.EarnedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to award achievement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.NewConflict("user achievement")
	}

	s.relay.PublishAchievementEarned(userID, firstName+" "+lastName, a.Name)
	return ua, nil
}

// RemoveGrant deletes one grant record by its row id (admin surface).
func (s *AchievementService) RemoveGrant(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_achievements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to remove grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("user achievement", id.String())
	}
	return nil
}

// Create validates criteria at authoring time so evaluation never hits a
// malformed predicate in the hot path.
func (s *AchievementService) Create(ctx context.Context, req *achievement.CreateRequest) (*achievement.Achievement, error) {
	if req.Name == "" {
		return nil, apperrors.NewValidation("name", "required")
	}
	if req.Type == "" {
		req.Type = achievement.TypeMilestone
	}
	if !achievement.ValidType(req.Type) {
		return nil, apperrors.NewValidation("type", fmt.Sprintf("unknown type %q", req.Type))
	}

	var criteriaJSON *string
	if req.Criteria != nil {
		if err := req.Criteria.Validate(); err != nil {
			return nil, apperrors.NewValidation("criteria", err.Error())
		}
		raw, err := json.Marshal(req.Criteria)
		if err != nil {
			return nil, fmt.Errorf("failed to encode criteria: %w", err)
		}
		encoded := string(raw)
		criteriaJSON = &encoded
	}

	now := time.Now()
	a := &achievement.Achievement{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Icon:        req.Icon,
		PointsValue: req.PointsValue,
		Criteria:    criteriaJSON,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO achievements (id, name, description, type, icon, points_value, criteria, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.Name, a.Description, a.Type, a.Icon, a.PointsValue, a.Criteria, a.IsActive, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create achievement: %w", err)
	}
	return a, nil
}

func (s *AchievementService) Update(ctx context.Context, id uuid.UUID, req *achievement.UpdateRequest) (*achievement.Achievement, error) {
	var criteriaJSON *string
	if req.Criteria != nil {
		if err := req.Criteria.Validate(); err != nil {
			return nil, apperrors.NewValidation("criteria", err.Error())
		}
		raw, err := json.Marshal(req.Criteria)
		if err != nil {
			return nil, fmt.Errorf("failed to encode criteria: %w", err)
		}
		encoded := string(raw)
		criteriaJSON = &encoded
	}

	query := `
	UPDATE achievements
	SET name = COALESCE($2, name),
	    description = COALESCE($3, description),
	    icon = COALESCE($4, icon),
	    points_value = COALESCE($5, points_value),
	    criteria = COALESCE($6, criteria),
	    is_active = COALESCE($7, is_active),
	    updated_at = NOW()
	WHERE id = $1
	RETURNING id, name, description, type, icon, points_value, criteria, is_active, created_at, updated_at
	`

	a := &achievement.Achievement{}
	err := s.db.QueryRow(ctx, query, id, req.Name, req.Description, req.Icon, req.PointsValue, criteriaJSON, req.IsActive).Scan(
		&a.ID, &a.Name, &a.Description, &a.Type, &a.Icon, &a.PointsValue, &a.Criteria, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("achievement", id.String())
		}
		return nil, fmt.Errorf("failed to update achievement: %w", err)
	}
	return a, nil
}

func (s *AchievementService) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM achievements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete achievement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("achievement", id.String())
	}
	return nil
}

func (s *AchievementService) GetByID(ctx context.Context, id uuid.UUID) (*achievement.Achievement, error) {
	a := &achievement.Achievement{}
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, type, icon, points_value, criteria, is_active, created_at, updated_at
		FROM achievements
		WHERE id = $1
	`, id).Scan(
		&a.ID, &a.Name, &a.Description, &a.Type, &a.Icon, &a.PointsValue, &a.Criteria, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("achievement", id.String())
		}
		return nil, fmt.Errorf("failed to get achievement: %w", err)
	}
	return a, nil
}

func (s *AchievementService) List(ctx context.Context, achievementType *achievement.Type, isActive *bool) ([]*achievement.Achievement, error) {
	var conditions []string
	var args []any

	if achievementType != nil {
		args = append(args, *achievementType)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if isActive != nil {
		args = append(args, *isActive)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}

	query := `
	SELECT id, name, description, type, icon, points_value, criteria, is_active, created_at, updated_at
	FROM achievements
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*achievement.Achievement
	for rows.Next() {
		a := &achievement.Achievement{}
		err := rows.Scan(
			&a.ID, &a.Name, &a.Description, &a.Type, &a.Icon, &a.PointsValue, &a.Criteria, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		achievements = append(achievements, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}

	if achievements == nil {
		achievements = []*achievement.Achievement{}
	}
	return achievements, nil
}

// UserAchievements lists a user's earned achievements, newest first.
func (s *AchievementService) UserAchievements(ctx context.Context, userID uuid.UUID) ([]*achievement.EarnedAchievement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.name, a.description, a.type, a.icon, a.points_value, a.criteria, a.is_active, a.created_at, a.updated_at, ua.earned_at
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = $1
		ORDER BY ua.earned_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user achievements: %w", err)
	}
	defer rows.Close()

	var earned []*achievement.EarnedAchievement
	for rows.Next() {
		e := &achievement.EarnedAchievement{}
		err := rows.Scan(
			&e.ID, &e.Name, &e.Description, &e.Type, &e.Icon, &e.PointsValue, &e.Criteria, &e.IsActive, &e.CreatedAt, &e.UpdatedAt, &e.EarnedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user achievement: %w", err)
		}
		earned = append(earned, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user achievements: %w", err)
	}

	if earned == nil {
		earned = []*achievement.EarnedAchievement{}
	}
	return earned, nil
}

func boolPtr(b bool) *bool { return &b }
