package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a provider.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token and provider info.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	Provider    ProviderInfo `json:"provider"`
	IssuedAt    time.Time    `json:"issued_at"`
}

// ProviderInfo describes the authenticated provider in responses.
type ProviderInfo struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	FullName string       `json:"full_name"`
	Role     ProviderRole `json:"role"`
}

// JWTClaims are the registered plus custom claims embedded in access tokens.
type JWTClaims struct {
	UserID string       `json:"uid"`
	Email  string       `json:"email"`
	Role   ProviderRole `json:"role"`
	jwt.RegisteredClaims
}
