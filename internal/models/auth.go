package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token payload issued by the upstream
// identity service. The role claim is trusted for identification but every
// workflow operation re-validates it against its own role requirements.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
