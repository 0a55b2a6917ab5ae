package analyzer

import "fmt"

// ReadError marks a source that was unreadable or vanished mid-analysis.
// Fatal for the file, harmless for the rest of the batch.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ResourceLimitExceededError marks a file that hit the size cap or the
// per-file timeout. Distinguished from ReadError so callers can retry the
// file with relaxed limits.
type ResourceLimitExceededError struct {
	Path  string
	Limit string
	Err   error
}

func (e *ResourceLimitExceededError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s limit exceeded: %v", e.Path, e.Limit, e.Err)
	}
	return fmt.Sprintf("%s: %s limit exceeded", e.Path, e.Limit)
}

func (e *ResourceLimitExceededError) Unwrap() error { return e.Err }
