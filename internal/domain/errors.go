package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ValidationError is a rejected write. The caller can correct it.
type ValidationError struct {
	Collection string
	Reason     string
}

func (e ValidationError) Error() string {
	if e.Collection == "" {
		return "invalid document: " + e.Reason
	}
	return fmt.Sprintf("invalid %s document: %s", e.Collection, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}

// Invalid is shorthand for building a ValidationError with a formatted reason.
func Invalid(collection, format string, args ...any) ValidationError {
	return ValidationError{Collection: collection, Reason: fmt.Sprintf(format, args...)}
}

// DataCorruptionError means a stored payload does not decode against its
// expected schema. It signals an integrity fault rather than a user mistake.
type DataCorruptionError struct {
	Collection string
	Key        string
	Err        error
}

func (e DataCorruptionError) Error() string {
	return fmt.Sprintf("corrupt %s document %q: %v", e.Collection, e.Key, e.Err)
}

func (e DataCorruptionError) Unwrap() error {
	return e.Err
}

func (e DataCorruptionError) Is(target error) bool {
	_, ok := target.(DataCorruptionError)
	if ok {
		return true
	}
	_, ok = target.(*DataCorruptionError)
	return ok
}

var ErrDataCorruption = DataCorruptionError{}

// ConflictError is a version mismatch on an optimistic write.
type ConflictError struct {
	Collection string
	Key        string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s document %q", e.Collection, e.Key)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

var ErrConflict = ConflictError{}

// ErrTryAgain is surfaced once conflict retries are exhausted.
var ErrTryAgain = errors.New("reputation is being updated concurrently, try again")
