package store

import (
	"errors"
	"fmt"
)

// Error kinds reported through ErrorClassifier.
const (
	KindNotFound    = "not_found"
	KindValidation  = "validation"
	KindTransient   = "transient"
	KindPersistence = "persistence"
)

// ErrorClassifier allows errors to declare their classification. The bot
// dispatcher maps not_found and validation to specific replies and everything
// else to a generic failure text.
type ErrorClassifier interface {
	// ErrorKind returns a string classification of the error.
	ErrorKind() string
}

type kindError struct {
	kind string
	msg  string
}

func (e *kindError) Error() string     { return e.msg }
func (e *kindError) ErrorKind() string { return e.kind }

var (
	// ErrNotFound reports a missing title, episode, channel or user.
	ErrNotFound error = &kindError{kind: KindNotFound, msg: "not found"}
	// ErrInvalid reports input rejected before touching the database.
	ErrInvalid error = &kindError{kind: KindValidation, msg: "invalid input"}
)

// PersistenceError wraps a database failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrorKind implements ErrorClassifier.
func (e *PersistenceError) ErrorKind() string {
	if isSQLiteBusy(e.Err) {
		return KindTransient
	}
	return KindPersistence
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// KindOf returns the classification of err, or "" when nothing in the chain
// implements ErrorClassifier.
func KindOf(err error) string {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return ""
}
