package middleware

import "context"

type contextKey string

const (
	ctxUserID        contextKey = "user_id"
	ctxDestinationID contextKey = "destination_id"
	ctxCartSession   contextKey = "cart_session"
)

// UserIDFromContext returns the signed-in user, or "" for guests.
func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxUserID)
}

// DestinationIDFromContext returns the delivery address bound to the token.
func DestinationIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxDestinationID)
}

func CartSessionFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxCartSession)
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, ctxUserID, userID)
}

func WithDestinationID(ctx context.Context, destinationID string) context.Context {
	return withString(ctx, ctxDestinationID, destinationID)
}

// WithCartSession binds the cart session handle for downstream handlers.
func WithCartSession(ctx context.Context, session string) context.Context {
	return withString(ctx, ctxCartSession, session)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}
