package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyRequestID      contextKey = "request_id"
	keyTenantID       contextKey = "tenant_id"
	keyChannelID      contextKey = "channel_id"
	keyConversationID contextKey = "conversation_id"
	keyUserID         contextKey = "user_id"
	keyRoles          contextKey = "roles"
)

// WithRequestID adds request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID extracts request ID from context.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}

// WithTenantID adds tenant ID to context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, keyTenantID, tenantID)
}

// TenantID extracts tenant ID from context.
func TenantID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTenantID).(string)
	return v, ok && v != ""
}

// WithChannelID adds the inbound channel ID to context.
func WithChannelID(ctx context.Context, channelID string) context.Context {
	return context.WithValue(ctx, keyChannelID, channelID)
}

// ChannelID extracts the inbound channel ID from context.
func ChannelID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyChannelID).(string)
	return v, ok && v != ""
}

// WithConversationID adds conversation ID to context.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, keyConversationID, conversationID)
}

// ConversationID extracts conversation ID from context.
func ConversationID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyConversationID).(string)
	return v, ok && v != ""
}

// WithUserID adds the authenticated caller ID to context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// UserID extracts the authenticated caller ID from context.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)
	return v, ok && v != ""
}

// WithRoles adds the caller's roles to context.
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, keyRoles, roles)
}

// Roles extracts the caller's roles from context.
func Roles(ctx context.Context) ([]string, bool) {
	v, ok := ctx.Value(keyRoles).([]string)
	return v, ok && len(v) > 0
}
