// Package fault defines the error taxonomy shared by the booking engine.
//
// Validation errors are user-correctable input problems, conflicts are
// recoverable races on slot capacity, config errors are data-integrity
// faults in a professional's schedule setup, and not-found errors reference
// missing entities. All of them are plain error values inspected with
// errors.As via the Is* predicates.
package fault

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

func Conflictf(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// ConfigError marks malformed schedule/exception configuration. It is
// surfaced to the professional's dashboard, never to booking clients.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Reason
}

func Configf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

func IsConfig(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}
