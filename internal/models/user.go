package models

import "time"

// UserRole represents the editorial roles recognised by the workflow.
type UserRole string

const (
	RoleAuthor         UserRole = "AUTHOR"
	RoleReviewer       UserRole = "REVIEWER"
	RoleEditor         UserRole = "EDITOR"
	RoleContentManager UserRole = "CONTENT_MANAGER"
	RoleAdmin          UserRole = "ADMIN"
)

// User is a read-only view of the upstream identity directory. The workflow
// core never creates or mutates users; it only resolves names and addresses
// for notification delivery.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
