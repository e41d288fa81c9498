package common

import (
	"database/sql"
	"fmt"

	"emperror.dev/errors"
)

// ValidationError is returned when user input is rejected, nothing has been written when it's returned
type ValidationError struct {
	Field  string
	Reason string
}

func (v *ValidationError) Error() string {
	if v.Field == "" {
		return v.Reason
	}
	return v.Field + ": " + v.Reason
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func NewValidationErrorf(field, f string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(f, args...)}
}

// NotFoundError is returned when an entity doesn't exist within the guild
type NotFoundError struct {
	Kind string
	ID   interface{}
}

func (n *NotFoundError) Error() string {
	if n.ID == nil {
		return "unknown " + n.Kind
	}
	return fmt.Sprintf("unknown %s (%v)", n.Kind, n.ID)
}

func NewNotFound(kind string, id interface{}) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// PermissionError is returned before an action is attempted by someone not allowed to perform it
type PermissionError struct {
	Action string
	Reason string
}

func (p *PermissionError) Error() string {
	if p.Reason != "" {
		return "you're not allowed to " + p.Action + ", " + p.Reason
	}
	return "you're not allowed to " + p.Action
}

func NewPermissionError(action string) *PermissionError {
	return &PermissionError{Action: action}
}

// NewOfficerOnlyError is the PermissionError for officer only actions
func NewOfficerOnlyError(action string) *PermissionError {
	return &PermissionError{Action: action, Reason: "that's for officers only"}
}

// InsufficientCandidatesError is returned when there's not enough people to fill a roster
type InsufficientCandidatesError struct {
	Needed int
	Have   int
}

func (i *InsufficientCandidatesError) Shortfall() int {
	return i.Needed - i.Have
}

func (i *InsufficientCandidatesError) Error() string {
	return fmt.Sprintf("not enough confirmed attendees: need %d, have %d (short by %d)", i.Needed, i.Have, i.Shortfall())
}

// DeliveryError is a failed direct message to a single user, these are collected and never abort a batch
type DeliveryError struct {
	UserID int64
	Err    error
}

func (d *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %d failed: %v", d.UserID, d.Err)
}

func (d *DeliveryError) Unwrap() error {
	return d.Err
}

// StoreError wraps failures from the database driver
type StoreError struct {
	Op  string
	Err error
}

func (s *StoreError) Error() string {
	return "store: " + s.Op + ": " + s.Err.Error()
}

func (s *StoreError) Unwrap() error {
	return s.Err
}

// WrapStoreErr turns a driver error into a StoreError, sql.ErrNoRows becomes a NotFoundError for kind/id
func WrapStoreErr(op string, err error, kind string, id interface{}) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFound(kind, id)
	}

	return errors.WithStackIf(&StoreError{Op: op, Err: err})
}

// StoreErr wraps err as a StoreError, returns nil if err is nil
func StoreErr(op string, err error) error {
	if err == nil {
		return nil
	}

	return errors.WithStackIf(&StoreError{Op: op, Err: err})
}

// IsNotFound returns true if err or any error it wraps is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
