package report

import (
	"fmt"

	"github.com/jonathan/ai-visibility/internal/correlation"
)

// ErrNoResponses is returned when a report has no response data to serve.
// It matches correlation.ErrNotFound.
var ErrNoResponses = fmt.Errorf("no response data found: %w", correlation.ErrNotFound)

// FormatError reports an unsupported export format.
type FormatError struct {
	Format string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported export format: %q (expected csv or json)", e.Format)
}

// RenderError represents a failure writing an HTML report.
type RenderError struct {
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("render error: %s", e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
