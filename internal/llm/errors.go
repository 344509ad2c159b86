package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

// TransientServiceError is a failure worth retrying: rate limits, timeouts,
// overloaded or unreachable upstreams.
type TransientServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransientServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient service error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient service error: %v", e.Provider, e.Err)
}

func (e *TransientServiceError) Unwrap() error {
	return e.Err
}

// FatalServiceError is a failure that retrying cannot fix, such as invalid
// credentials or a malformed request.
type FatalServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *FatalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: fatal service error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: fatal service error: %v", e.Provider, e.Err)
}

func (e *FatalServiceError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientServiceError.
func IsTransient(err error) bool {
	var t *TransientServiceError
	return errors.As(err, &t)
}

// IsFatal reports whether err is a FatalServiceError.
func IsFatal(err error) bool {
	var f *FatalServiceError
	return errors.As(err, &f)
}

// Escalate converts an exhausted transient failure into a fatal one.
func Escalate(err error) error {
	var t *TransientServiceError
	if errors.As(err, &t) {
		return &FatalServiceError{
			Provider:   t.Provider,
			StatusCode: t.StatusCode,
			Err:        fmt.Errorf("retries exhausted: %w", err),
		}
	}
	return err
}

// Classify maps a provider error onto the transient/fatal taxonomy. Context
// cancellation is returned unchanged so callers can tell it apart from
// service failures.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if IsTransient(err) || IsFatal(err) {
		return err
	}

	if status, ok := statusCode(err); ok {
		if retryableStatus(status) {
			return &TransientServiceError{Provider: provider, StatusCode: status, Err: err}
		}
		return &FatalServiceError{Provider: provider, StatusCode: status, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientServiceError{Provider: provider, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientServiceError{Provider: provider, Err: err}
	}

	return &FatalServiceError{Provider: provider, Err: err}
}

func statusCode(err error) (int, bool) {
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) && oaiAPI.HTTPStatusCode != 0 {
		return oaiAPI.HTTPStatusCode, true
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) && oaiReq.HTTPStatusCode != 0 {
		return oaiReq.HTTPStatusCode, true
	}
	var anthErr *anthropic.Error
	if errors.As(err, &anthErr) && anthErr.StatusCode != 0 {
		return anthErr.StatusCode, true
	}
	return 0, false
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return status >= http.StatusInternalServerError
}
