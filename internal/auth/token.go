// Package auth issues and verifies the JWT bearer tokens the API runs on,
// and provides the context helpers middleware and handlers share without an
// import cycle.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gemchat/internal/domain"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// Claims is the payload carried in every issued token.
type Claims struct {
	MobileNumber string                  `json:"mobileNumber"`
	Tier         domain.SubscriptionTier `json:"tier"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies tokens with a shared HMAC secret.
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a TokenManager. The secret must be non-empty.
func NewTokenManager(secret string) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &TokenManager{secret: []byte(secret)}, nil
}

// Sign issues a token for the given user identity.
func (m *TokenManager) Sign(userID uuid.UUID, mobileNumber string, tier domain.SubscriptionTier) (string, error) {
	now := time.Now()
	claims := Claims{
		MobileNumber: mobileNumber,
		Tier:         tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the user ID and claims.
func (m *TokenManager) Verify(tokenString string) (uuid.UUID, *Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return uuid.Nil, nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid subject claim: %w", err)
	}
	return userID, claims, nil
}
