// Package apperror defines a centralized system for application-specific errors.
// Every handler in the account service returns one of these typed errors, and a single
// writer at the HTTP boundary turns it into a status code and a `{"msg": "..."}` body.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of an application error; it decides the HTTP status.
type ErrorType int

const (
	UnknownError ErrorType = iota
	// DatabaseError wraps a failed query or connection.
	DatabaseError
	// UnauthorizedError is a missing, invalid or no longer current session token.
	UnauthorizedError
	// NotFoundError is an unknown user. Registration also reports a taken username with it.
	NotFoundError
	// ValidationError is a request body that fails field validation.
	ValidationError
	// BadRequestError is a malformed request or a wrong password.
	BadRequestError
	// UnprocessableError is a well-formed request with an unacceptable upload.
	UnprocessableError
	InternalError
	MigrationError
)

var statusByType = map[ErrorType]int{
	DatabaseError:      http.StatusInternalServerError,
	UnauthorizedError:  http.StatusUnauthorized,
	NotFoundError:      http.StatusNotFound,
	ValidationError:    http.StatusBadRequest,
	BadRequestError:    http.StatusBadRequest,
	UnprocessableError: http.StatusUnprocessableEntity,
	InternalError:      http.StatusInternalServerError,
	MigrationError:     http.StatusInternalServerError,
}

// InternalMessage is the only message a client ever sees for a 5xx response.
const InternalMessage = "Internal server error"

// AppError carries a client-facing Message and, in Err, the cause that only gets logged.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error type to an HTTP status. Unknown types are 500.
func (e *AppError) StatusCode() int {
	if status, ok := statusByType[e.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New creates an AppError of the given type.
func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Err: cause}
}

func NewDatabaseError(message string, cause error) *AppError {
	return New(DatabaseError, message, cause)
}

func NewUnauthorizedError(message string, cause error) *AppError {
	return New(UnauthorizedError, message, cause)
}

func NewNotFoundError(message string, cause error) *AppError {
	return New(NotFoundError, message, cause)
}

func NewValidationError(message string, cause error) *AppError {
	return New(ValidationError, message, cause)
}

func NewBadRequestError(message string, cause error) *AppError {
	return New(BadRequestError, message, cause)
}

func NewUnprocessableError(message string, cause error) *AppError {
	return New(UnprocessableError, message, cause)
}

func NewInternalError(message string, cause error) *AppError {
	return New(InternalError, message, cause)
}

func NewMigrationError(message string, cause error) *AppError {
	return New(MigrationError, message, cause)
}

// ErrorResponse is the error body returned to API clients.
type ErrorResponse struct {
	Msg string `json:"msg" example:"Unauthorized"`
}

// ToResponse returns the client-facing body. Server-side failures never leak their message.
func (e *AppError) ToResponse() ErrorResponse {
	if e.StatusCode() >= http.StatusInternalServerError {
		return ErrorResponse{Msg: InternalMessage}
	}
	return ErrorResponse{Msg: e.Message}
}

// FromError finds an *AppError in err's chain.
func FromError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err's chain holds an AppError of type t.
func Is(err error, t ErrorType) bool {
	ae, ok := FromError(err)
	return ok && ae.Type == t
}
