package model

import (
	"errors"
	"fmt"
)

// ErrSessionExpired means there is no usable session; the operator must log in again.
var ErrSessionExpired = errors.New("session expired, please login again")

// ValidationError is raised before anything is sent to the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RemoteError carries a backend failure. Message is shown to the operator verbatim.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// RenderFailure means the rendering engine could not produce an artifact.
type RenderFailure struct {
	Format string
	SizePx int
	Err    error
}

func (e *RenderFailure) Error() string {
	if e.SizePx > 0 {
		return fmt.Sprintf("render %s at %dpx: %v", e.Format, e.SizePx, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.Format, e.Err)
}

func (e *RenderFailure) Unwrap() error {
	return e.Err
}

// PartialListFailure reports that one of the admin list fetches failed while
// the other one succeeded.
type PartialListFailure struct {
	List string
	Err  error
}

func (e *PartialListFailure) Error() string {
	return e.Err.Error()
}

func (e *PartialListFailure) Unwrap() error {
	return e.Err
}
