// Package errors categorises service errors and maps the categories to HTTP status codes
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryGeneralError the service failed in an unexpected way
	CategoryGeneralError Category = iota
	// CategoryDataError the request payload or parameters are invalid
	CategoryDataError
	// CategoryUnauthorized the request carries no valid credentials
	CategoryUnauthorized
	// CategoryResourceNotFound the requested resource does not exist
	CategoryResourceNotFound
	// CategoryDataConflict the request conflicts with existing state
	CategoryDataConflict
	// CategoryDependencyFailure the Ethereum node or the database failed
	CategoryDependencyFailure
	// CategoryUnavailable the service is at capacity or shutting down
	CategoryUnavailable
)

func (c Category) String() string {
	switch c {
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryDataConflict:
		return "CategoryDataConflict"
	case CategoryDependencyFailure:
		return "CategoryDependencyFailure"
	case CategoryUnavailable:
		return "CategoryUnavailable"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError carries a category and a user facing message.
// Err is logged, never returned to the caller.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

func (err *ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err *ServiceError) Unwrap() error {
	return err.Err
}

// StatusCode returns the HTTP status code for the error category
func (err *ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryDataConflict:
		return http.StatusConflict
	case CategoryDependencyFailure:
		return http.StatusBadGateway
	case CategoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is checks that err is a ServiceError with category cat
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

func newError(cat Category, err error, message string) error {
	if err == nil {
		err = errors.New(message)
	}
	return &ServiceError{Category: cat, Message: message, Err: err}
}

// GeneralError hides err behind "Internal Server Error"
func GeneralError(err error) error {
	return newError(CategoryGeneralError, err, "Internal Server Error")
}

// BadRequestError returns an error with category DataError
func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message)
}

// UnAuthorizedError returns an error with category Unauthorized
func UnAuthorizedError(err error, message string) error {
	return newError(CategoryUnauthorized, err, message)
}

// ResourceNotFoundError returns an error with category ResourceNotFound
func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message)
}

// ConflictError returns an error with category DataConflict
func ConflictError(err error, message string) error {
	return newError(CategoryDataConflict, err, message)
}

// DependencyError returns an error with category DependencyFailure
func DependencyError(err error, message string) error {
	return newError(CategoryDependencyFailure, err, message)
}

// UnavailableError returns an error with category Unavailable
func UnavailableError(err error, message string) error {
	return newError(CategoryUnavailable, err, message)
}
