package domain

import (
	"time"
)

// Plant is a tracked plant owned by one user.
type Plant struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	NoteIDs     []int64   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PlantPatch carries a partial plant update. Nil fields are left untouched.
type PlantPatch struct {
	Name        *string
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p PlantPatch) Empty() bool {
	return p.Name == nil && p.Description == nil
}
