package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned by single-record lookups outside the tenant-scoped
// repository, which instead reports a missing record as nil.
var ErrNotFound = errors.New("record not found")

// ErrorKind classifies repository failures.
type ErrorKind string

const (
	KindQuery        ErrorKind = "query_error"
	KindInsert       ErrorKind = "insert_error"
	KindUpdate       ErrorKind = "update_error"
	KindDelete       ErrorKind = "delete_error"
	KindValidation   ErrorKind = "validation_error"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindUnknown      ErrorKind = "unknown_error"
)

// Error is a classified repository failure. Err keeps the store error for logs.
type Error struct {
	Kind       ErrorKind
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Collection, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Collection, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match not_found errors.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// KindOf returns the classification of err, or unknown_error for foreign errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}
	return KindUnknown
}

func newError(kind ErrorKind, collection, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Collection: collection, Err: err}
}

// classify wraps a store error using the kind that matches the operation.
// An error that is already classified keeps its kind.
func classify(kind ErrorKind, collection, op string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return newError(KindNotFound, collection, op, err)
	}
	return newError(kind, collection, op, err)
}
