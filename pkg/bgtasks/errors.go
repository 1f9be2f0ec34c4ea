package bgtasks

import "errors"

// permanentError marks a failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the runner fails the task immediately instead of
// releasing it for another attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

var ErrUnknownTaskType = errors.New("unknown task type")

func invalidConfig(msg string) error {
	return errors.New("bgtasks: " + msg)
}
