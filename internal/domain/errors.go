// Package domain defines core types, collaborator ports, and errors for the
// dashboard backend.
package domain

import "fmt"

// AuthenticationError indicates a missing, malformed, or rejected credential.
// It is terminal for the request and never downgraded to an anonymous identity.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// AccessDeniedError indicates the identity resolved but lacks a required
// privilege on a named resource.
type AccessDeniedError struct {
	Message   string
	Resource  string
	Privilege string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ConfigurationError indicates a requested logical query/filter id does not
// exist, is inactive, or is missing a required parameter. Client-input error,
// not a system fault.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// CollaboratorError indicates a failure reaching an external dependency
// (identity lookup, privilege store, metadata store).
type CollaboratorError struct {
	Message string
	Err     error
}

func (e *CollaboratorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrAuthentication creates an AuthenticationError with a formatted message.
func ErrAuthentication(format string, args ...interface{}) *AuthenticationError {
	return &AuthenticationError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDeniedOn creates an AccessDeniedError naming the resource and
// privilege for diagnostics.
func ErrAccessDeniedOn(resource, privilege, format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{
		Message:   fmt.Sprintf(format, args...),
		Resource:  resource,
		Privilege: privilege,
	}
}

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ErrCollaborator wraps an external dependency failure.
func ErrCollaborator(err error, format string, args ...interface{}) *CollaboratorError {
	return &CollaboratorError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
