package observability

const (
	MCommandRequests MetricKey = "command_requests_total"
	MCommandDuration MetricKey = "command_duration_seconds"
	MCheckoutLines   MetricKey = "checkout_lines_total"
	MActiveSessions  MetricKey = "active_sessions"
)
