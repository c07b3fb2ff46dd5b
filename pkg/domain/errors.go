package domain

import (
	"errors"
	"fmt"
)

// Sentinel kinds matched through errors.Is against the typed errors below.
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConstraint      = errors.New("constraint violated")
	ErrInvalidArgument = errors.New("invalid argument")
)

// NotFoundError is returned when a referenced file, metadata id, parameter or
// group does not exist.
type NotFoundError struct {
	Kind  string // file, metadata, parameter, group, column
	ID    string
	Path  string // resolved path, when the missing thing is a file
	Cause error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %s could not be found", e.Kind, e.ID)
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s (%s) could not be found", e.Kind, e.ID, e.Path)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// Is reports kind equality for errors.Is.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a structural or referential inconsistency in one of
// the four documents. Document is one of context, process, link or theta.
type ValidationError struct {
	Document string
	Path     string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("in %s.json, %s", e.Document, e.Message)
	}
	return fmt.Sprintf("in %s.json %s, %s", e.Document, e.Path, e.Message)
}

// Is reports kind equality for errors.Is.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalidf builds a ValidationError.
func Invalidf(document, path, format string, args ...any) *ValidationError {
	return &ValidationError{Document: document, Path: path, Message: fmt.Sprintf(format, args...)}
}

// ConstraintError is raised when a numeric invariant cannot hold after a
// mutation (impossible simplex, normalized value outside its bounds).
type ConstraintError struct {
	Parameter  string
	Group      string
	Population string
	Message    string
}

func (e *ConstraintError) Error() string {
	var where string
	switch {
	case e.Parameter != "" && e.Group != "":
		where = fmt.Sprintf(" (%s:%s)", e.Parameter, e.Group)
	case e.Population != "":
		where = fmt.Sprintf(" (population %s)", e.Population)
	}
	return "constraint violated" + where + ": " + e.Message
}

// Is reports kind equality for errors.Is.
func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

// InvalidArgumentError reports a malformed option string.
type InvalidArgumentError struct {
	Option  string
	Value   string
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s argument %q: %s", e.Option, e.Value, e.Message)
}

// Is reports kind equality for errors.Is.
func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }
