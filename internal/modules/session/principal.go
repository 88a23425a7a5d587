// README: The caller identity resolved once per request and carried through context.
package session

import (
	"context"
	"time"

	"ridehail/internal/types"
)

type Kind string

const (
	KindAnonymous Kind = "anonymous"
	KindPassenger Kind = "passenger"
	KindDriver    Kind = "driver"
)

func (k Kind) Valid() bool {
	return k == KindPassenger || k == KindDriver
}

// Principal is who is calling. ID and TokenID are empty for anonymous callers.
type Principal struct {
	Kind      Kind
	ID        types.ID
	TokenID   string
	ExpiresAt time.Time
}

var Anonymous = Principal{Kind: KindAnonymous}

func (p Principal) IsPassenger() bool { return p.Kind == KindPassenger && p.ID != "" }
func (p Principal) IsDriver() bool    { return p.Kind == KindDriver && p.ID != "" }

type contextKey struct{}

func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the stored principal, or Anonymous.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(contextKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}
