package auth

import "context"

// ContextKey is the type used for context keys
type ContextKey string

const (
	// ContextKeyUserID is the key for the authenticated user id in the context
	ContextKeyUserID ContextKey = "userID"
	// ContextKeySessionKey is the key for the token identifying the caller's session
	ContextKeySessionKey ContextKey = "sessionKey"
)

// WithUserID returns a context carrying the authenticated user and the key of
// the session they authenticated with.
func WithUserID(ctx context.Context, userID, sessionKey string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	return context.WithValue(ctx, ContextKeySessionKey, sessionKey)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// SessionKeyFromContext returns the key of the caller's session, if any.
func SessionKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(ContextKeySessionKey).(string)
	return key
}
