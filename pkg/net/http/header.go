package http

const (
	ApplicationJsonContentType = "application/json"

	CorrelationIDHeaderKey      = "Correlation-Id"
	ContentTypeHeaderKey        = "Content-Type"
	ContentTypeOptionsHeaderKey = "X-Content-Type-Options"
	AcceptHeaderKey             = "Accept"
	APIKeyHeaderKey             = "X-Api-Key"
)
