package transfer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the payload of the session token issued by the identity
// service.
type SessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
