package storage

import "fmt"

// ExportError is returned when an output file could not be written. It is
// fatal to the run and never retried.
type ExportError struct {
	Path  string
	Op    string
	Cause error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}
