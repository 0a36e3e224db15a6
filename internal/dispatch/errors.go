package dispatch

import "fmt"

// ValidationError reports the first argument that does not satisfy the
// tool's input schema.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid arguments: %s", e.Reason)
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// UpstreamError wraps a failure of the spreadsheet API. Its message is the
// upstream message, unchanged.
type UpstreamError struct {
	Tool string
	Err  error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
