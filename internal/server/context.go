package server

import "context"

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// Identity is the verified caller placed in context by the auth middleware.
type Identity struct {
	UserID    string
	Role      string
	Scopes    []string
	SessionID string
}

// WithIdentity returns a context carrying the verified identity. Handlers
// read it via GetIdentity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the identity from context and true if set; otherwise
// a zero Identity and false.
func GetIdentity(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey).(Identity)
	return v, ok
}
