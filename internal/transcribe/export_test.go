package transcribe

// Re-export unexported identifiers for white-box assertions in the external
// test package.

var (
	IsRetryableError = isRetryableError
	NewRequestError  = newRequestError
	ParseResult      = parseResult
	SendWithRetry    = sendWithRetry
)

// RetryPolicy exports retryPolicy so tests can build one directly.
type RetryPolicy = retryPolicy
