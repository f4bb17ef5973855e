package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const bearerScheme = "Bearer "

// LogFunc receives diagnostic events. The default discards them.
type LogFunc func(event string, fields map[string]any)

func nopLog(string, map[string]any) {}

// Resolver converts an inbound bearer credential into a trusted identity.
// It is strictly read-only: resolution never mutates user state.
type Resolver struct {
	tokens *Tokens
	store  Store
	logf   LogFunc
}

// ResolverOption configures Resolver.
type ResolverOption func(*Resolver)

// WithResolverLog sets the diagnostic log sink.
func WithResolverLog(fn LogFunc) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.logf = fn
		}
	}
}

// NewResolver constructs a Resolver.
func NewResolver(tokens *Tokens, store Store, opts ...ResolverOption) (*Resolver, error) {
	if tokens == nil {
		return nil, errors.New("auth: tokens are required")
	}
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	r := &Resolver{tokens: tokens, store: store, logf: nopLog}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveHeader authenticates the raw Authorization header value and loads
// the corresponding identity, excluding credential material.
//
// Failure modes: ErrUnauthenticated for a missing, malformed, expired or
// badly signed credential (the causes are deliberately indistinguishable to
// the caller, but logged); ErrNotFound when the token is valid but its
// subject no longer exists.
func (r *Resolver) ResolveHeader(ctx context.Context, header string) (Identity, error) {
	token, err := extractBearerToken(header)
	if err != nil {
		r.logf("auth.resolve.rejected", map[string]any{"cause": err.Error()})
		return Identity{}, ErrUnauthenticated
	}
	claims, err := r.tokens.Verify(token)
	if err != nil {
		r.logf("auth.resolve.rejected", map[string]any{"cause": err.Error()})
		return Identity{}, ErrUnauthenticated
	}
	user, err := r.store.FindUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logf("auth.resolve.subject_gone", map[string]any{"subject": claims.Subject})
			return Identity{}, fmt.Errorf("%w: subject %s", ErrNotFound, claims.Subject)
		}
		return Identity{}, err
	}
	return IdentityOf(*user), nil
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerScheme)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerScheme):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
