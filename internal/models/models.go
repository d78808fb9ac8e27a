package models

import (
	"database/sql"
	"time"
)

type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is the canonical stored shape: completed is always a boolean here,
// whatever representation the request carried.
type Task struct {
	ID          int        `json:"id"`
	OwnerID     int        `json:"ownerId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ScanRow fills the task from a row selected with taskColumns ordering.
func (t *Task) ScanRow(row interface{ Scan(...interface{}) error }) error {
	var priority sql.NullString
	var dueDate sql.NullTime
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &priority, &dueDate, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	if priority.Valid {
		t.Priority = priority.String
	} else {
		t.Priority = ""
	}
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	} else {
		t.DueDate = nil
	}
	return nil
}
