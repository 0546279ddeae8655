package user

import (
	"time"

	"github.com/google/uuid"
)

type UserType string

const (
	TypeAdmin    UserType = "admin"
	TypeManager  UserType = "manager"
	TypeEmployee UserType = "employee"
	TypeSalesRep UserType = "sales_rep"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

type User struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	UserType   UserType  `json:"user_type" db:"user_type"`
	Status     Status    `json:"status" db:"status"`
	Department *string   `json:"department,omitempty" db:"department"`
	Territory  *string   `json:"territory,omitempty" db:"territory"`
	Manager    *string   `json:"manager,omitempty" db:"manager"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

type CreateUserRequest struct {
	Email      string   `json:"email"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	UserType   UserType `json:"user_type"`
	Department *string  `json:"department"`
	Territory  *string  `json:"territory"`
	Manager    *string  `json:"manager"`
}

type UpdateUserRequest struct {
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Status     Status  `json:"status"`
	Department *string `json:"department"`
	Territory  *string `json:"territory"`
	Manager    *string `json:"manager"`
}

func ValidType(t UserType) bool {
	switch t {
	case TypeAdmin, TypeManager, TypeEmployee, TypeSalesRep:
		return true
	}
	return false
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}
