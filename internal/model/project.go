// Package model defines the data structures used throughout the application.
package model

import "time"

// Project is a named container that owns a set of mock endpoints.
// Deleting a project deletes its endpoints with it.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectPatch lists the project fields an update may change.
// A nil field is left untouched.
type ProjectPatch struct {
	Name        *string
	Description *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProjectPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil
}
