// Package completion provides synchronous clients for text-generation
// backends. A client makes a single attempt per call: retry and backoff
// policy belongs to the caller, and the agent loop deliberately performs
// none.
//
// Failures are collapsed into two cases the loop can act on:
// [ErrGenerationTimeout] when no response arrives before the caller's
// deadline, and [*GenerationError] for every other transport or backend
// fault.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulsechat/pulsechat"
)

// Client is a synchronous text-generation backend.
type Client interface {
	// Complete generates the next assistant turn for the ordered message
	// history. It blocks until the backend responds, the context expires,
	// or the call fails.
	Complete(ctx context.Context, messages []pulsechat.Message) (string, error)
}

// ErrGenerationTimeout indicates no response arrived within the
// caller-supplied timeout.
var ErrGenerationTimeout = errors.New("completion: generation timed out")

// GenerationError indicates a transport or backend failure: rate limit,
// bad credentials, network failure, malformed response. Sub-errors are
// not classified further at this layer.
type GenerationError struct {
	Provider string
	Cause    error
}

// Error returns the error message.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("completion: %s generation failed: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// wrapErr maps a backend error to the package's two failure cases.
func wrapErr(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrGenerationTimeout
	}
	return &GenerationError{Provider: provider, Cause: err}
}
