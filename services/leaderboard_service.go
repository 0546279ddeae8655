package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DeusGroup/Leadr/internal/apperrors"
	"github.com/DeusGroup/Leadr/internal/types/leaderboard"
	"github.com/DeusGroup/Leadr/internal/types/metric"
)

// LeaderboardService owns leaderboard records and the ranking recompute.
// leaderboard_rankings is a materialized view: fully re-derivable from
// metrics + leaderboards, rebuilt on demand via Recalculate.
type LeaderboardService struct {
	db *pgxpool.Pool

	// One lock per leaderboard so two concurrent recomputes of the same board
	// cannot interleave their replace-in-place phases. Different boards
	// recompute in parallel.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewLeaderboardService(db *pgxpool.Pool) *LeaderboardService {
	return &LeaderboardService{
		db:    db,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *LeaderboardService) lockFor(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Recalculate recomputes the full ranking table for one leaderboard and
// replaces it in place. Returns the number of ranked users.
//
// If scoring fails (missing board, corrupt settings) nothing is written: the
// previous ranking stays visible until a recompute succeeds. Running twice
// with unchanged metrics yields identical rows except calculated_at.
func (s *LeaderboardService) Recalculate(ctx context.Context, id uuid.UUID) (int, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	lb, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	metrics, err := s.leaderboardMetrics(ctx, id)
	if err != nil {
		return 0, apperrors.NewCompute(id.String(), err)
	}

	scores, err := computeScores(lb, metrics)
	if err != nil {
		return 0, apperrors.NewCompute(id.String(), err)
	}

	previous, err := s.previousRanks(ctx, id)
	if err != nil {
		return 0, apperrors.NewCompute(id.String(), err)
	}

	rows := assignRanks(id, scores, previous, time.Now())

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin ranking transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO leaderboard_rankings (id, leaderboard_id, user_id, rank, score, previous_rank, rank_change, calculated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (leaderboard_id, user_id) DO UPDATE SET
				rank = EXCLUDED.rank,
				score = EXCLUDED.score,
				previous_rank = EXCLUDED.previous_rank,
				rank_change = EXCLUDED.rank_change,
				calculated_at = EXCLUDED.calculated_at
		`, uuid.New(), row.LeaderboardID, row.UserID, row.Rank, row.Score, row.PreviousRank, row.RankChange, row.CalculatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert ranking row: %w", err)
		}
	}

	// Users who lost their last scoped metric drop out entirely; leaving
	// their stale rows would break the dense 1..N invariant.
	rankedIDs := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		rankedIDs[i] = row.UserID
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM leaderboard_rankings
		WHERE leaderboard_id = $1 AND NOT (user_id = ANY($2))
	`, id, rankedIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale ranking rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit ranking transaction: %w", err)
	}

	log.Printf("Recalculated leaderboard %s: %d users ranked", id, len(rows))
	return len(rows), nil
}

func (s *LeaderboardService) leaderboardMetrics(ctx context.Context, id uuid.UUID) ([]metric.Metric, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, metric_type, value, weight
		FROM metrics
		WHERE leaderboard_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard metrics: %w", err)
	}
	defer rows.Close()

	var metrics []metric.Metric
	for rows.Next() {
		var m metric.Metric
		if err := rows.Scan(&m.UserID, &m.MetricType, &m.Value, &m.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}
	return metrics, nil
}

func (s *LeaderboardService) previousRanks(ctx context.Context, id uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id, rank FROM leaderboard_rankings WHERE leaderboard_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous ranks: %w", err)
	}
	defer rows.Close()

	previous := make(map[uuid.UUID]int)
	for rows.Next() {
		var userID uuid.UUID
		var rank int
		if err := rows.Scan(&userID, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan previous rank: %w", err)
		}
		previous[userID] = rank
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating previous ranks: %w", err)
	}
	return previous, nil
}

// Rankings returns the materialized ranking rows joined with user display
// fields, ordered by rank.
func (s *LeaderboardService) Rankings(ctx context.Context, id uuid.UUID, limit, offset int) ([]*leaderboard.RankingEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT r.leaderboard_id, r.user_id, r.rank, r.score, r.previous_rank, r.rank_change, r.calculated_at,
		       u.first_name, u.last_name, u.email, u.department, u.territory
		FROM leaderboard_rankings r
		JOIN users u ON u.id = r.user_id
		WHERE r.leaderboard_id = $1
		ORDER BY r.rank
		LIMIT $2 OFFSET $3
	`, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rankings: %w", err)
	}
	defer rows.Close()

	var entries []*leaderboard.RankingEntry
	for rows.Next() {
		e := &leaderboard.RankingEntry{}
		err := rows.Scan(
			&e.LeaderboardID, &e.UserID, &e.Rank, &e.Score, &e.PreviousRank, &e.RankChange, &e.CalculatedAt,
			&e.FirstName, &e.LastName, &e.Email, &e.Department, &e.Territory,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rankings: %w", err)
	}

	if entries == nil {
		entries = []*leaderboard.RankingEntry{}
	}
	return entries, nil
}

// UserRanking returns one user's row on a leaderboard.
func (s *LeaderboardService) UserRanking(ctx context.Context, id, userID uuid.UUID) (*leaderboard.RankingEntry, error) {
	e := &leaderboard.RankingEntry{}
	err := s.db.QueryRow(ctx, `
		SELECT r.leaderboard_id, r.user_id, r.rank, r.score, r.previous_rank, r.rank_change, r.calculated_at,
		       u.first_name, u.last_name, u.email, u.department, u.territory
		FROM leaderboard_rankings r
		JOIN users u ON u.id = r.user_id
		WHERE r.leaderboard_id = $1 AND r.user_id = $2
	`, id, userID).Scan(
		&e.LeaderboardID, &e.UserID, &e.Rank, &e.Score, &e.PreviousRank, &e.RankChange, &e.CalculatedAt,
		&e.FirstName, &e.LastName, &e.Email, &e.Department, &e.Territory,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ranking", userID.String())
		}
		return nil, fmt.Errorf("failed to get user ranking: %w", err)
	}
	return e, nil
}

func (s *LeaderboardService) Create(ctx context.Context, req *leaderboard.CreateRequest) (*leaderboard.Leaderboard, error) {
	if req.Name == "" {
		return nil, apperrors.NewValidation("name", "required")
	}
	if req.Type == "" {
		req.Type = leaderboard.TypeEmployee
	}
	if !leaderboard.ValidType(req.Type) {
		return nil, apperrors.NewValidation("type", fmt.Sprintf("unknown type %q", req.Type))
	}

	now := time.Now()
	lb := &leaderboard.Leaderboard{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		IsActive:    true,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Settings:    req.Settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Reject corrupt settings at creation, not deep inside a recompute.
	if _, err := lb.ParseSettings(); err != nil {
		return nil, apperrors.NewValidation("settings", err.Error())
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO leaderboards (id, name, description, type, is_active, start_date, end_date, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, lb.ID, lb.Name, lb.Description, lb.Type, lb.IsActive, lb.StartDate, lb.EndDate, lb.Settings, lb.CreatedAt, lb.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create leaderboard: %w", err)
	}
	return lb, nil
}

func (s *LeaderboardService) Update(ctx context.Context, id uuid.UUID, req *leaderboard.UpdateRequest) (*leaderboard.Leaderboard, error) {
	if req.Settings != nil {
		probe := leaderboard.Leaderboard{Settings: req.Settings}
		if _, err := probe.ParseSettings(); err != nil {
			return nil, apperrors.NewValidation("settings", err.Error())
		}
	}

	query := `
	UPDATE leaderboards
	SET name = COALESCE($2, name),
	    description = COALESCE($3, description),
	    is_active = COALESCE($4, is_active),
	    start_date = COALESCE($5, start_date),
	    end_date = COALESCE($6, end_date),
	    settings = COALESCE($7, settings),
	    updated_at = NOW()
	WHERE id = $1
	RETURNING id, name, description, type, is_active, start_date, end_date, settings, created_at, updated_at
	`

	lb := &leaderboard.Leaderboard{}
	err := s.db.QueryRow(ctx, query, id, req.Name, req.Description, req.IsActive, req.StartDate, req.EndDate, req.Settings).Scan(
		&lb.ID, &lb.Name, &lb.Description, &lb.Type, &lb.IsActive, &lb.StartDate, &lb.EndDate, &lb.Settings, &lb.CreatedAt, &lb.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("leaderboard", id.String())
		}
		return nil, fmt.Errorf("failed to update leaderboard: %w", err)
	}
	return lb, nil
}

func (s *LeaderboardService) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM leaderboards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete leaderboard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("leaderboard", id.String())
	}
	return nil
}

func (s *LeaderboardService) GetByID(ctx context.Context, id uuid.UUID) (*leaderboard.Leaderboard, error) {
	lb := &leaderboard.Leaderboard{}
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, type, is_active, start_date, end_date, settings, created_at, updated_at
		FROM leaderboards
		WHERE id = $1
	`, id).Scan(
		&lb.ID, &lb.Name, &lb.Description, &lb.Type, &lb.IsActive, &lb.StartDate, &lb.EndDate, &lb.Settings, &lb.CreatedAt, &lb.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("leaderboard", id.String())
		}
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return lb, nil
}

func (s *LeaderboardService) List(ctx context.Context, lbType *leaderboard.Type, isActive *bool) ([]*leaderboard.Leaderboard, error) {
	var conditions []string
	var args []any

	if lbType != nil {
		args = append(args, *lbType)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if isActive != nil {
		args = append(args, *isActive)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}

	query := `
	SELECT id, name, description, type, is_active, start_date, end_date, settings, created_at, updated_at
	FROM leaderboards
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboards: %w", err)
	}
	defer rows.Close()

	var boards []*leaderboard.Leaderboard
	for rows.Next() {
		lb := &leaderboard.Leaderboard{}
		err := rows.Scan(
			&lb.ID, &lb.Name, &lb.Description, &lb.Type, &lb.IsActive, &lb.StartDate, &lb.EndDate, &lb.Settings, &lb.CreatedAt, &lb.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard: %w", err)
		}
		boards = append(boards, lb)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboards: %w", err)
	}

	if boards == nil {
		boards = []*leaderboard.Leaderboard{}
	}
	return boards, nil
}
