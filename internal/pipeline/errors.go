package pipeline

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageRead      Stage = "read"
	StageTranslate Stage = "translate"
	StageExecute   Stage = "execute"
)

// Error is a recoverable, per-question (or per-upload) failure tagged with
// the stage that produced it. Message is safe to show to the user.
type Error struct {
	Stage   Stage
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, message string, err error) *Error {
	return &Error{Stage: stage, Message: message, Err: err}
}

// rootCause returns the innermost error in err's chain, which for database
// errors is the engine's own message.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var stageErr *Error
	if errors.As(err, &stageErr) {
		return stageErr, true
	}
	return nil, false
}
