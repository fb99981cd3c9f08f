package constants

// Context and session keys
const (
	ContextKeyUserID    = "user_id"
	ContextKeyTask      = "task"
	ContextKeyUser      = "current_user"
	ContextKeyRequestID = "request_id"
	SessionCookieName   = "retail_session"
	RequestIDHeader     = "X-Request-ID"
)

// Password rules
const (
	MinPasswordLength = 8
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AI task drafting
const (
	MaxAIGeneratedTasks = 20
)
