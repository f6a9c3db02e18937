package commands

import (
	"errors"

	"github.com/mbocsi/hostbridge/scene"
)

// CommandError is a handler failure with a machine readable code. Its Error
// text is what the client sees in the error response.
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"cause,omitempty"`
}

func (e CommandError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e CommandError) Unwrap() error {
	return e.Cause
}

const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

func invalidInput(msg string, cause error) error {
	return CommandError{Code: ErrCodeInvalidInput, Message: msg, Cause: cause}
}

// fromScene maps document errors onto command errors.
func fromScene(name string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, scene.ErrNotFound):
		return CommandError{Code: ErrCodeNotFound, Message: "Object not found: " + name}
	case errors.Is(err, scene.ErrInvalidName):
		return CommandError{Code: ErrCodeInvalidInput, Message: "Invalid object name: " + name}
	default:
		return CommandError{Code: ErrCodeInternal, Message: "Scene operation failed", Cause: err}
	}
}
