package types

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// CustomError carries an HTTP status and error type through middleware
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

var (
	// ErrInvalidCredentials is the only answer to a bad email or password.
	// It never says which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrDuplicate is returned by the database layer on a unique constraint violation
	ErrDuplicate = errors.New("duplicate record")
)

// ValidationError is a caller mistake: bad input, duplicate registration, duplicate bookmark
type ValidationError struct {
	Field    string
	Message  string
	Conflict bool
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError returns a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewConflictError returns a ValidationError flagged as a conflict with existing state
func NewConflictError(message string) *ValidationError {
	return &ValidationError{Message: message, Conflict: true}
}

// LockoutError rejects a login while the account block is in force
type LockoutError struct {
	Remaining time.Duration
}

// Minutes is the remaining block time rounded up, never less than one
func (e *LockoutError) Minutes() int {
	m := int(math.Ceil(e.Remaining.Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account is temporarily blocked, try again in %d minutes", e.Minutes())
}

// BlacklistError rejects a login for a blacklisted account
type BlacklistError struct {
	Reason string
}

func (e *BlacklistError) Error() string {
	if e.Reason == "" {
		return "account has been blacklisted, contact support"
	}
	return fmt.Sprintf("account has been blacklisted: %s", e.Reason)
}

// DeviceLimitError rejects a login from a new device once the tier limit is reached
type DeviceLimitError struct {
	Limit       int
	Blacklisted bool
}

func (e *DeviceLimitError) Error() string {
	if e.Blacklisted {
		return fmt.Sprintf("maximum device limit (%d) exceeded, account has been blacklisted", e.Limit)
	}
	return fmt.Sprintf("maximum device limit (%d) reached, deactivate a device to sign in from a new one", e.Limit)
}

// NotFoundError reports a missing record
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// NewNotFoundError returns a NotFoundError for resource and id
func NewNotFoundError(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// PersistenceError wraps a store failure. The detail is logged, not shown to callers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err as a PersistenceError unless it is nil or already typed
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		pe *PersistenceError
		ve *ValidationError
		nf *NotFoundError
	)
	if errors.As(err, &pe) || errors.As(err, &ve) || errors.As(err, &nf) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
