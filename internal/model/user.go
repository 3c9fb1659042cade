package model

import (
	"github.com/google/uuid"
)

// Role is the closed set of identities the access gate understands.
// It is assigned once at registration and checked uniformly by the
// auth middleware, never by ad-hoc string comparison in handlers.
type Role string

const (
	RoleTechnician Role = "TECHNICIAN"
	RoleDoctor     Role = "DOCTOR"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTechnician, RoleDoctor:
		return true
	}
	return false
}

// User represents an authenticated system user (technician or doctor).
type User struct {
	Base
	Username     string  `json:"username" db:"username"`
	Email        *string `json:"email,omitempty" db:"email"`
	PasswordHash string  `json:"-" db:"password_hash"`
	Role         Role    `json:"role" db:"role"`
}

// RegisterRequest represents registration parameters
type RegisterRequest struct {
	Username string  `json:"username" binding:"required,min=3,max=150"`
	Password string  `json:"password" binding:"required,min=8"`
	Role     string  `json:"role" binding:"required,role"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

// LoginRequest represents credential exchange parameters
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries the issued token pair
type TokenResponse struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// TokenClaims is the identity extracted from a validated token.
type TokenClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
}
