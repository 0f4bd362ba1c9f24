package types

import "fmt"

// RenderError reports that the external renderer could not produce a PDF for
// a URL as a whole. Variants already yielded before the failure are not
// retracted by the renderer.
type RenderError struct {
	URL     string
	Message string
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("render timed out for %s: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("render failed for %s: %s", e.URL, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// NewRenderError wraps err as a render failure for url.
func NewRenderError(url, message string, err error) *RenderError {
	return &RenderError{URL: url, Message: message, Err: err}
}

// NewRenderTimeout wraps err as a render timeout for url. Timeouts are a
// RenderError subtype: callers mark the URL failed the same way.
func NewRenderTimeout(url string, err error) *RenderError {
	return &RenderError{URL: url, Message: "generation timeout exceeded", Timeout: true, Err: err}
}
