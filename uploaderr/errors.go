// Package uploaderr holds the error types shared by the chunk store, the coordinator and the HTTP layer.
package uploaderr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// ValidationError reports malformed input. It is raised before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError ...
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InconsistentTotalError is raised when a chunk declares a total that differs from the one
// recorded for the same upload.
type InconsistentTotalError struct {
	ContentHash string
	Declared    int
	Recorded    int
}

func (e *InconsistentTotalError) Error() string {
	return fmt.Sprintf("upload %s: declared total %d differs from recorded total %d", e.ContentHash, e.Declared, e.Recorded)
}

// AssemblyError is raised when the chunk set is not exactly {0..Total-1} at assembly time.
// The bucket is left untouched.
type AssemblyError struct {
	ContentHash string
	Total       int
	Missing     []int
	Unexpected  []int
}

func (e *AssemblyError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing indices %s", joinInts(e.Missing)))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected indices %s", joinInts(e.Unexpected)))
	}
	if len(parts) == 0 {
		parts = append(parts, "chunk set changed during assembly")
	}
	return fmt.Sprintf("assemble %s (total %d): %s", e.ContentHash, e.Total, strings.Join(parts, ", "))
}

// StorageError wraps an underlying I/O failure.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError returns nil when err is nil.
func NewStorageError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Path: path, Err: err}
}

func joinInts(values []int) string {
	const limit = 16
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range values {
		if i == limit {
			fmt.Fprintf(&b, " ...(+%d)", len(values)-limit)
			break
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", v)
	}
	b.WriteByte(']')
	return b.String()
}
