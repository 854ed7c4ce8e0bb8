package middleware

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// --- Logger Keys ---
	RequestFileLoggerKey  ContextKey = "requestFileLogger"
	RequestAuditLoggerKey ContextKey = "requestAuditLogger"
	RequestIDHeader                  = "X-Request-ID"

	// --- JWT Middleware Keys ---
	AuthorizationHeader            = "Authorization"
	BearerPrefix                   = "Bearer "
	UserIDKey           ContextKey = "userID"

	// --- Request ID Key ---
	RequestIDKey ContextKey = "requestID"
)
