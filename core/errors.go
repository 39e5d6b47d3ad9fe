package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// ArgumentError reports a malformed or self-contradicting argument.
type ArgumentError struct {
	msg string
}

func NewArgumentError(msg string) error {
	return &ArgumentError{msg}
}

func (err *ArgumentError) Error() string {
	return err.msg
}

// TransactionError wraps a store failure that aborted a transaction.
// Nothing of the failed operation was applied.
type TransactionError struct {
	Err error
}

func NewTransactionError(err error, msg string) error {
	return &TransactionError{Err: errors.Wrap(err, msg)}
}

func (err *TransactionError) Error() string {
	return err.Err.Error()
}

func (err *TransactionError) Unwrap() error {
	return err.Err
}

func IsTransactionFailure(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
