package auth

import (
	"errors"
	"time"

	"marketplace-service/config"
	"marketplace-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Claims are the JWT claims carried by an access token
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// TokenManager issues and verifies access tokens
type TokenManager struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewTokenManager creates a new token manager
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret:     []byte(cfg.JWTSecret),
		expiration: cfg.TokenTTL,
		issuer:     cfg.Issuer,
	}
}

// Issue signs an access token for the user
func (m *TokenManager) Issue(u *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.expiration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: u.ID.String(),
		Role:   string(u.Role),
		Name:   u.Name,
		Email:  u.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates a token and returns the principal it identifies
func (m *TokenManager) Verify(tokenString string) (models.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Principal{}, ErrExpiredToken
		}
		return models.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Principal{}, ErrInvalidClaims
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return models.Principal{}, ErrInvalidClaims
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return models.Principal{}, ErrInvalidClaims
	}

	return models.Principal{
		UserID: userID,
		Role:   role,
		Name:   claims.Name,
		Email:  claims.Email,
	}, nil
}
