package domain

import (
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPatch carries a partial user update. Nil fields are left untouched.
type UserPatch struct {
	Email    *string
	FullName *string
	Password *string
	Role     *string
	IsActive *bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.FullName == nil && p.Password == nil &&
		p.Role == nil && p.IsActive == nil
}

// TokenPair holds an issued access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
