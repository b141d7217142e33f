package log

const (
	// Workspace
	FieldProjectID = "project_id"
	FieldUserID    = "user_id"
	FieldMessageID = "message_id"
	FieldEvent     = "event"
	FieldPage      = "page"

	// Transport
	FieldAttempt = "attempt"
	FieldBackoff = "backoff_ms"

	// Request (stub backend)
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"

	// Component
	FieldComponent = "component"
)
