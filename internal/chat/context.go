package chat

import "context"

// userIDKey is an unexported context key for zero-allocation type safety.
type userIDKey struct{}

// ContextWithUserID stores the submitting user's identity in context.
// The entry layer injects it; the orchestrator stamps it on the user
// message it commits.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext retrieves the user identity from context.
// Returns empty string if not set.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
