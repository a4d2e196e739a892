// Package access issues and verifies the signed watch credentials handed to buyers.
// Verification is purely cryptographic; whether the purchase still grants access
// is decided by the playback gate against the database.
package access

import (
	"errors"
	"fmt"
	"time"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "ms-livestream"

type Claims struct {
	PurchaseID string `json:"purchase_id"`
	UserID     string `json:"user_id,omitempty"`
	EventID    string `json:"event_id"`
	jwt.RegisteredClaims
}

// ExpiresTime is zero when the token carries no expiry.
func (c *Claims) ExpiresTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type Service struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

func NewService(cfg config.AccessConfig) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("access token secret is empty")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{secret: []byte(cfg.JWTSecret), defaultTTL: ttl, now: time.Now}, nil
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Service) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue signs a token for the purchase. A non-positive ttl uses the configured default.
func (s *Service) Issue(purchaseID, userID, eventID string, ttl time.Duration) (string, time.Time, error) {
	if purchaseID == "" || eventID == "" {
		return "", time.Time{}, fmt.Errorf("%w: purchase and event are required to issue a token", apperror.ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	// JWT timestamps have second precision
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	claims := Claims{
		PurchaseID: purchaseID,
		UserID:     userID,
		EventID:    eventID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   purchaseID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", apperror.ErrInvalidToken)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", apperror.ErrInvalidToken, err)
	}
	if claims.PurchaseID == "" || claims.EventID == "" {
		return nil, fmt.Errorf("%w: missing purchase claims", apperror.ErrInvalidToken)
	}
	return claims, nil
}
