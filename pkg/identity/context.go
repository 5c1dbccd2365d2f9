package identity

import (
	"context"
	"net/http"
)

// identityKey is the key type for storing an Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context. The boolean is false
// when no authentication middleware ran for this request.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// FromRequest is FromContext for handlers that only hold the request.
func FromRequest(r *http.Request) (Identity, bool) {
	return FromContext(r.Context())
}

// MustFromRequest panics if the request did not pass through the
// authentication middleware.
func MustFromRequest(r *http.Request) Identity {
	id, ok := FromRequest(r)
	if !ok {
		panic("identity: Identity not found in request context")
	}
	return id
}
