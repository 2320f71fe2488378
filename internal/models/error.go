package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a period that cannot run because its configuration
	// is incomplete, e.g. no reference folder.
	ErrConfiguration = errors.New("configuration error")
	// ErrAlignment marks a secondary folder whose files do not line up with the
	// reference folder's dates.
	ErrAlignment = errors.New("alignment error")
	// ErrRowParse marks a row or file that was skipped while streaming.
	ErrRowParse = errors.New("row parse error")
	// ErrBatchWrite marks a batch that was rolled back.
	ErrBatchWrite = errors.New("batch write error")
)

// AppError is an error scoped to one file of one folder.
type AppError struct {
	Folder  string
	Path    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("folder %s, file %s: %s - %v", e.Folder, e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("folder %s, file %s: %s", e.Folder, e.Path, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}
