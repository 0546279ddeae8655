package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DeusGroup/Leadr/internal/apperrors"
	"github.com/DeusGroup/Leadr/internal/types/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

func (s *UserService) Create(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	if req.Email == "" {
		return nil, apperrors.NewValidation("email", "required")
	}
	if req.FirstName == "" {
		return nil, apperrors.NewValidation("first_name", "required")
	}
	if req.LastName == "" {
		return nil, apperrors.NewValidation("last_name", "required")
	}
	if req.UserType == "" {
		req.UserType = user.TypeEmployee
	}
	if !user.ValidType(req.UserType) {
		return nil, apperrors.NewValidation("user_type", fmt.Sprintf("unknown type %q", req.UserType))
	}

	now := time.Now()
	u := &user.User{
		ID:         uuid.New(),
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		UserType:   req.UserType,
		Status:     user.StatusActive,
		Department: req.Department,
		Territory:  req.Territory,
		Manager:    req.Manager,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, user_type, status, department, territory, manager, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.Email, u.FirstName, u.LastName, u.UserType, u.Status, u.Department, u.Territory, u.Manager, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, apperrors.NewConflict("user")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u := &user.User{}
	err := s.db.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, user_type, status, department, territory, manager, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.UserType, &u.Status,
		&u.Department, &u.Territory, &u.Manager, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", id.String())
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, userType *user.UserType, status *user.Status) ([]*user.User, error) {
	var conditions []string
	var args []any

	if userType != nil {
		if !user.ValidType(*userType) {
			return nil, apperrors.NewValidation("user_type", fmt.Sprintf("unknown type %q", *userType))
		}
		args = append(args, *userType)
		conditions = append(conditions, fmt.Sprintf("user_type = $%d", len(args)))
	}
	if status != nil {
		if !user.ValidStatus(*status) {
			return nil, apperrors.NewValidation("status", fmt.Sprintf("unknown status %q", *status))
		}
		args = append(args, *status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `
	SELECT id, email, first_name, last_name, user_type, status, department, territory, manager, created_at, updated_at
	FROM users
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u := &user.User{}
		err := rows.Scan(
			&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.UserType, &u.Status,
			&u.Department, &u.Territory, &u.Manager, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	if users == nil {
		users = []*user.User{}
	}
	return users, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, req *user.UpdateUserRequest) (*user.User, error) {
	if req.Status != "" && !user.ValidStatus(req.Status) {
		return nil, apperrors.NewValidation("status", fmt.Sprintf("unknown status %q", req.Status))
	}

	query := `
	UPDATE users
	SET first_name = COALESCE(NULLIF($2, ''), first_name),
	    last_name = COALESCE(NULLIF($3, ''), last_name),
	    status = COALESCE(NULLIF($4, '')::user_status, status),
	    department = COALESCE($5, department),
	    territory = COALESCE($6, territory),
	    manager = COALESCE($7, manager),
	    updated_at = NOW()
	WHERE id = $1
	RETURNING id, email, first_name, last_name, user_type, status, department, territory, manager, created_at, updated_at
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, id, req.FirstName, req.LastName, string(req.Status), req.Department, req.Territory, req.Manager).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.UserType, &u.Status,
		&u.Department, &u.Territory, &u.Manager, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", id.String())
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// Delete removes a user. Metrics, grants, rankings and activity rows cascade
// at the database level.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFound("user", id.String())
	}
	return nil
}
