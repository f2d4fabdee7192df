package playback

import (
	"context"

	"github.com/cockroachdb/errors"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying the player.
func NewContext(ctx context.Context, p *Player) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the player stored in ctx.
func FromContext(ctx context.Context) (*Player, bool) {
	p, ok := ctx.Value(contextKey{}).(*Player)
	return p, ok && p != nil
}

// MustFromContext returns the player stored in ctx and panics when there is
// none. A missing player means a handler was mounted outside the session
// middleware.
func MustFromContext(ctx context.Context) *Player {
	p, ok := FromContext(ctx)
	if !ok {
		panic(errors.AssertionFailedf("playback: no player in context; handler is not wrapped by the session middleware"))
	}
	return p
}
