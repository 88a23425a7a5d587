// README: Issues and resolves signed bearer tokens; logout revokes a token until it expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

const issuer = "ridehail"

var ErrInvalidToken = apperr.New(apperr.KindUnauthorized, "invalid or expired token")

type Claims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// RevocationStore remembers revoked token ids until their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	now     func() time.Time
}

func NewManager(secret string, ttl time.Duration, revoked RevocationStore) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, revoked: revoked, now: time.Now}
}

type Token struct {
	Value     string
	ExpiresAt time.Time
}

func (m *Manager) Issue(kind Kind, id types.ID) (Token, error) {
	if !kind.Valid() || id == "" {
		return Token{}, fmt.Errorf("issue token: invalid principal %q/%q", kind, id)
	}
	now := m.now().UTC()
	exp := now.Add(m.ttl)
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(id),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Resolve verifies the token and returns its principal. Any defect in the
// token yields ErrInvalidToken; a revocation store failure is a store error.
func (m *Manager) Resolve(ctx context.Context, raw string) (Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Anonymous, ErrInvalidToken
	}
	if !claims.Kind.Valid() || claims.Subject == "" || claims.ID == "" {
		return Anonymous, ErrInvalidToken
	}

	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Anonymous, apperr.Store(err)
		}
		if revoked {
			return Anonymous, ErrInvalidToken
		}
	}
	return Principal{
		Kind:      claims.Kind,
		ID:        types.ID(claims.Subject),
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates the principal's token for the rest of its lifetime.
func (m *Manager) Revoke(ctx context.Context, p Principal) error {
	if p.TokenID == "" {
		return errors.New("revoke: principal has no token")
	}
	if m.revoked == nil {
		return nil
	}
	ttl := p.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	if err := m.revoked.Revoke(ctx, p.TokenID, ttl); err != nil {
		return apperr.Store(err)
	}
	return nil
}
