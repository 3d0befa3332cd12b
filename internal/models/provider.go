package models

import "time"

// ProviderRole represents the roles recognised by the availability API.
type ProviderRole string

const (
	RoleAdmin    ProviderRole = "ADMIN"
	RoleProvider ProviderRole = "PROVIDER"
)

// Provider is a marketplace service provider account stored in the providers
// table. Only the fields the availability API needs are mapped.
type Provider struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	PasswordHash string       `db:"password_hash" json:"-"`
	FullName     string       `db:"full_name" json:"full_name"`
	Role         ProviderRole `db:"role" json:"role"`
	Active       bool         `db:"active" json:"active"`
	LastLogin    *time.Time   `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
