// Package errors contains helper functions and types to work with errors
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError is the zero category, kept for request tracking when no error occurred.
	CategoryNoError Category = iota
	// CategoryDataError The client sent invalid data, for example a non-positive amount.
	CategoryDataError
	// CategoryResourceNotFound The client is attempting to access a resource that does not exist
	CategoryResourceNotFound
	// CategoryNotSupported The requested chain or token is not in the configured set
	CategoryNotSupported
	// CategoryConfiguration A required chain parameter or signing key is absent from the environment
	CategoryConfiguration
	// CategorySigning A key or credential problem prevented signing a transaction
	CategorySigning
	// CategoryTransactionFailed The chain rejected or reverted the submitted transaction
	CategoryTransactionFailed
	// CategoryDependencyFailure A dependent service (RPC node, database) is throwing errors
	CategoryDependencyFailure
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryNotSupported:
		return "CategoryNotSupported"
	case CategoryConfiguration:
		return "CategoryConfiguration"
	case CategorySigning:
		return "CategorySigning"
	case CategoryTransactionFailed:
		return "CategoryTransactionFailed"
	case CategoryDependencyFailure:
		return "CategoryDependencyFailure"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError represents service specific type that
// is used all over the services.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is implements the custom condition to check an error is equal to a service error
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// IsRetryable reports whether the failure is transient, i.e. a later retry of
// the same operation may succeed without operator intervention.
func IsRetryable(err error) bool {
	return Is(err, CategoryDependencyFailure)
}

// GeneralError returns a general service error
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  "Internal Error",
		Err:      err,
	}
}

// BadRequestError returns an error with category DataError
func BadRequestError(err error, message string) error {
	if err == nil {
		err = errors.New("bad request: " + message)
	}
	return &ServiceError{
		Category: CategoryDataError,
		Message:  message,
		Err:      err,
	}
}

// ResourceNotFoundError returns an error with category ResourceNotFound
func ResourceNotFoundError(err error, message string) error {
	if err == nil {
		err = errors.New("resource not found: " + message)
	}
	return &ServiceError{
		Category: CategoryResourceNotFound,
		Message:  message,
		Err:      err,
	}
}

// NotSupportedError returns an error with category NotSupported
func NotSupportedError(err error, message string) error {
	if err == nil {
		err = errors.New("not supported: " + message)
	}
	return &ServiceError{
		Category: CategoryNotSupported,
		Message:  message,
		Err:      err,
	}
}

// ConfigurationError returns an error with category Configuration.
// These require the operator to fix the environment; callers cannot retry past them.
func ConfigurationError(err error, message string) error {
	if err == nil {
		err = errors.New("configuration: " + message)
	}
	return &ServiceError{
		Category: CategoryConfiguration,
		Message:  message,
		Err:      err,
	}
}

// SigningError returns an error with category Signing
func SigningError(err error, message string) error {
	if err == nil {
		err = errors.New("signing: " + message)
	}
	return &ServiceError{
		Category: CategorySigning,
		Message:  message,
		Err:      err,
	}
}

// TransactionFailedError returns an error with category TransactionFailed.
// Not blindly retryable: value may already be escrowed on the source chain.
func TransactionFailedError(err error, message string) error {
	if err == nil {
		err = errors.New("transaction failed: " + message)
	}
	return &ServiceError{
		Category: CategoryTransactionFailed,
		Message:  message,
		Err:      err,
	}
}

// DependencyFailureError returns an error with category DependencyFailure
func DependencyFailureError(err error, message string) error {
	if err == nil {
		err = errors.New("dependency failure: " + message)
	}
	return &ServiceError{
		Category: CategoryDependencyFailure,
		Message:  message,
		Err:      err,
	}
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryNotSupported:
		return http.StatusUnprocessableEntity
	case CategoryConfiguration, CategorySigning:
		return http.StatusNotImplemented
	case CategoryTransactionFailed, CategoryDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
