// Package profile provides anonymous profile identity. A profile is the
// server-side analog of a browser profile: a random id wrapped in a signed
// token, with no account or personal data attached. Entitlement records are
// keyed by it.
package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is invalid
	ErrInvalidToken = errors.New("invalid profile token")
	// ErrExpiredToken is returned when a token has expired
	ErrExpiredToken = errors.New("profile token has expired")
)

// DefaultExpiration keeps anonymous profiles stable for a long time; a new
// token just means a fresh free-tier record.
const DefaultExpiration = 180 * 24 * time.Hour

// Claims represents the profile token claims
type Claims struct {
	ProfileID string `json:"profile_id"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed profile tokens.
type TokenService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewTokenService creates a new token service.
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &TokenService{
		secret:     []byte(secret),
		expiration: expiration,
		issuer:     "summari",
	}
}

// Issue mints a token for a brand-new profile id.
func (s *TokenService) Issue() (profileID, token string, err error) {
	profileID = uuid.New().String()
	token, err = s.sign(profileID)
	return profileID, token, err
}

func (s *TokenService) sign(profileID string) (string, error) {
	now := time.Now()
	claims := Claims{
		ProfileID: profileID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   profileID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign profile token: %w", err)
	}
	return signed, nil
}

// Validate validates a token and returns the profile id.
func (s *TokenService) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Issuer != s.issuer || claims.ProfileID == "" {
		return "", ErrInvalidToken
	}

	return claims.ProfileID, nil
}
