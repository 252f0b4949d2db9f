package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a ServiceError independently of transport.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"
	KindNotFound           ErrorKind = "not_found"
	KindForbidden          ErrorKind = "forbidden"
	KindAlreadyTerminal    ErrorKind = "already_terminal"
	KindTimerNotElapsed    ErrorKind = "timer_not_elapsed"
	KindPersistenceFailure ErrorKind = "persistence_failure"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindConflict           ErrorKind = "conflict"
)

type ServiceError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e ServiceError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, status int, msg string) error {
	return ServiceError{Kind: kind, Status: status, Message: msg}
}

func ErrBadRequest(msg string) error {
	return newError(KindInvalidInput, http.StatusBadRequest, msg)
}

func ErrNotFound(msg string) error {
	return newError(KindNotFound, http.StatusNotFound, msg)
}

func ErrForbidden(msg string) error {
	return newError(KindForbidden, http.StatusForbidden, msg)
}

func ErrAlreadyTerminal(msg string) error {
	return newError(KindAlreadyTerminal, http.StatusConflict, msg)
}

func ErrTimerNotElapsed(msg string) error {
	return newError(KindTimerNotElapsed, http.StatusConflict, msg)
}

func ErrUnauthorized(msg string) error {
	return newError(KindUnauthorized, http.StatusUnauthorized, msg)
}

func ErrConflict(msg string) error {
	return newError(KindConflict, http.StatusConflict, msg)
}

// ErrPersistence wraps a storage failure. ServiceErrors pass through unchanged.
func ErrPersistence(msg string, err error) error {
	var svcErr ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return ServiceError{Kind: KindPersistenceFailure, Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a ServiceError.
func KindOf(err error) ErrorKind {
	var svcErr ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
