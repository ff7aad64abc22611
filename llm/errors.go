package llm

import "fmt"

// ProviderError is a failed text-generation call. Transient marks failures
// expected to resolve on retry (rate limits, server trouble, network
// errors); the retry package consults IsRecoverable, so call sites need no
// knowledge of this type.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
	Wrapped    error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Wrapped
}

// IsRecoverable implements retry.RecoverableError.
func (e *ProviderError) IsRecoverable() bool {
	return e.Transient
}

// classifyStatus determines whether an HTTP error status is transient.
func classifyStatus(statusCode int, body string) *ProviderError {
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	transient := statusCode == 429 || statusCode >= 500
	return &ProviderError{
		StatusCode: statusCode,
		Message:    body,
		Transient:  transient,
	}
}
