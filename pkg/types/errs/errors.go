package errs

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrUnknownProcedure = errors.New("unknown procedure")
	ErrVersionConflict  = errors.New("project version conflict")
	ErrQuotaDenied      = errors.New("advanced operations quota denied")
	ErrEditorLimit      = errors.New("concurrent editor limit reached")
	ErrEmptyPipeline    = errors.New("project has no tools")
	ErrNoImages         = errors.New("project has no images")
	ErrPermissionDenied = errors.New("permission denied")
)

// ConflictError carries the server's current version so the caller can
// refetch and retry.
type ConflictError struct {
	ServerVersion int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("project version conflict, server version %d", e.ServerVersion)
}

func (e *ConflictError) Unwrap() error {
	return ErrVersionConflict
}

// EditorLimitError carries the live editor count and the configured limit
// for the capacity message.
type EditorLimitError struct {
	Active int
	Limit  int
}

func (e *EditorLimitError) Error() string {
	return fmt.Sprintf("concurrent editor limit reached, active %d of %d", e.Active, e.Limit)
}

func (e *EditorLimitError) Unwrap() error {
	return ErrEditorLimit
}
