package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"factura.org/internal/fault"
)

const defaultAccessTTL = time.Hour

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService signs and verifies HS256 access tokens carrying the custom
// claims payload. It is constructed explicitly and injected; there is no
// process-global secret.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if iss := strings.TrimSpace(issuer); iss != "" {
			s.issuer = iss
		}
	}
}

// WithAccessTTL configures token lifetime, which bounds the claims
// staleness window.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService with the given signing secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	s := &TokenService{
		secret: []byte(secret),
		issuer: "factura",
		ttl:    defaultAccessTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type tokenClaims struct {
	Email         string          `json:"email,omitempty"`
	Organizations []string        `json:"organizations"`
	OrgRoles      map[string]Role `json:"orgRoles"`
	PlatformAdmin bool            `json:"platformAdmin,omitempty"`
	jwt.RegisteredClaims
}

// Mint signs a token embedding the caller's custom claims as of now. A fresh
// token is how updated claims reach an active session.
func (s *TokenService) Mint(uid, email string, claims Claims) (string, time.Time, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", time.Time{}, fault.New(fault.InvalidArgument, "uid is required")
	}
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	tc := tokenClaims{
		Email:         email,
		Organizations: claims.Organizations,
		OrgRoles:      claims.OrgRoles,
		PlatformAdmin: claims.PlatformAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	if tc.Organizations == nil {
		tc.Organizations = []string{}
	}
	if tc.OrgRoles == nil {
		tc.OrgRoles = map[string]Role{}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fault.Wrap(fault.Internal, "sign token", err)
	}
	return signed, exp, nil
}

// Verify validates the token signature and registered claims and returns the
// caller identity with the claims presented in the token.
func (s *TokenService) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{},
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(tc.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		UID:   tc.Subject,
		Email: tc.Email,
		Claims: Claims{
			Organizations: tc.Organizations,
			OrgRoles:      tc.OrgRoles,
			PlatformAdmin: tc.PlatformAdmin,
		},
	}, nil
}
