// Package ctxkeys holds shared context keys for the API layer.
// Extracted to a leaf package to avoid import cycles between api and middleware.
package ctxkeys

import "context"

// Key is the unexported named type for all API context keys.
// A named type prevents collisions with string keys from other packages
// (context.Value compares both type and value).
type Key string

// ClientID is the context key for the authenticated MCP client.
// Injected by the auth middleware from JWT claims.
const ClientID Key = "client_id"

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// ClientIDFrom extracts the authenticated client id from the context.
// Returns "" when the request was not authenticated.
func ClientIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(ClientID).(string)
	return v
}
