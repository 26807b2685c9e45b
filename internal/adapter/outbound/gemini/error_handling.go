package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// ExecutorError is a classified GenAI failure.
type ExecutorError struct {
	Op         string
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

func (e *ExecutorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gemini %s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini %s failed: %s", e.Op, e.Message)
}

func (e *ExecutorError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err is a transient executor failure.
func IsRetryable(err error) bool {
	var execErr *ExecutorError
	return errors.As(err, &execErr) && execErr.Retryable
}

func apiErrorOf(err error) (genai.APIError, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func convertSDKError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ExecutorError{Op: op, Message: "request timed out", Retryable: true, Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ExecutorError{Op: op, Message: "request cancelled", Cause: err}
	}

	apiErr, ok := apiErrorOf(err)
	if !ok {
		return &ExecutorError{Op: op, Message: err.Error(), Retryable: true, Cause: err}
	}
	retryable := apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	return &ExecutorError{
		Op:         op,
		StatusCode: apiErr.Code,
		Message:    apiErr.Message,
		Retryable:  retryable,
		Cause:      err,
	}
}
