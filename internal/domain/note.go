package domain

import (
	"time"
)

// Note is a journal entry anchored to a plant, a calendar day, or both.
type Note struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	PlantID   *int64     `json:"plant_id,omitempty"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Day       *time.Time `json:"day,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Anchored reports whether the note is bound to a plant or a day.
func (n Note) Anchored() bool {
	return n.PlantID != nil || n.Day != nil
}

// NotePatch carries a partial note update. Nil fields are left untouched.
type NotePatch struct {
	Title   *string
	Content *string
	PlantID *int64
	Day     *time.Time
}

// Empty reports whether the patch changes nothing.
func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.PlantID == nil && p.Day == nil
}
