package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/minglehq/mingle/internal/config"
	"github.com/minglehq/mingle/internal/models"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and wrong algorithms.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for structurally valid tokens past their TTL.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the identity payload embedded in every access token.
// Refresh tokens carry only the registered claims (subject id).
type Claims struct {
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName,omitempty"`
	Admin    bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies access and refresh tokens. Verification is a
// pure function of token, secret material and current time; no I/O.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewService(cfg config.JWTConfig) *Service {
	return &Service{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess creates a signed short-lived access token carrying the user's
// identity claims.
func (s *Service) IssueAccess(u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: u.Username,
		FullName: u.FullName,
		Admin:    u.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := jt.SignedString(s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefresh creates a signed long-lived refresh token carrying only the
// subject id.
func (s *Service) IssueRefresh(sub string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		ID:        newTokenID(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := jt.SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// newTokenID gives every refresh token a unique jti so that two tokens
// issued for the same subject within the same second still differ. Rotation
// depends on that: the superseded token must never equal its replacement.
func newTokenID() string { return uuid.NewString() }

// VerifyAccess validates an access token and returns its claims.
func (s *Service) VerifyAccess(raw string) (*Claims, error) {
	return verify(raw, s.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (s *Service) VerifyRefresh(raw string) (*Claims, error) {
	return verify(raw, s.refreshSecret)
}

func verify(raw string, secret []byte) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tkn.Valid {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}
