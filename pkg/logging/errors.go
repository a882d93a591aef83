// verge/pkg/logging/errors.go

package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeSize       ErrorType = "SIZE"
	ErrorTypeRemote     ErrorType = "REMOTE"
	ErrorTypeVerify     ErrorType = "VERIFY"
	ErrorTypeLocal      ErrorType = "LOCAL"
)

type VergeError struct {
	Type    ErrorType
	Message string
	Err     error
	Fields  map[string]interface{}
}

func (e *VergeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *VergeError) Unwrap() error {
	return e.Err
}

func NewError(errType ErrorType, message string, err error, fields map[string]interface{}) *VergeError {
	return &VergeError{
		Type:    errType,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

func LogError(logger zerolog.Logger, err error) {
	vergeErr, ok := err.(*VergeError)
	if !ok {
		logger.Error().Err(err).Msg(err.Error())
		return
	}

	event := logger.Error().Err(vergeErr.Err).
		Str("error_type", string(vergeErr.Type)).
		Str("message", vergeErr.Message)

	for k, v := range vergeErr.Fields {
		event = event.Interface(k, v)
	}

	event.Msg(vergeErr.Message)
}
