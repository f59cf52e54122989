package domain

import "errors"

var (
	// ErrInvalidInput signals an empty or malformed query/message. Rejected
	// before any provider call is made.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound signals a missing catalog item.
	ErrNotFound = errors.New("not found")
	// ErrProviderUnavailable signals an embedding or completion call that
	// failed due to network error, timeout, or a provider-side failure.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderRejected signals input the provider refuses to process
	// (empty text, text over the configured length bound).
	ErrProviderRejected = errors.New("rejected by provider")
	// ErrCompletionFailed signals a chat completion failure after retries.
	ErrCompletionFailed = errors.New("completion failed")
)
