package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionIDKey = "sessionID"
	issuer       = "user-manager"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewSession creates a random session ID and its signed token.
func NewSession(secret string, ttl time.Duration) (string, string, error) {
	sessionID := uuid.NewString()
	token, err := GenerateSessionToken(sessionID, secret, ttl)
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

// GenerateSessionToken signs a session ID with HS256
func GenerateSessionToken(sessionID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates and parses a session token
func ValidateToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetSessionIDFromContext extracts the session ID from Gin context
func GetSessionIDFromContext(c *gin.Context) (string, error) {
	value, exists := c.Get(SessionIDKey)
	if !exists {
		return "", fmt.Errorf("session ID not found in context")
	}

	id, ok := value.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid session ID type")
	}

	return id, nil
}
