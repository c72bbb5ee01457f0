package service

import (
	"errors"
	"fmt"
)

// Error kinds exposed in error responses.
const (
	KindValidation     = "validation_error"
	KindPermission     = "permission_denied"
	KindNotFound       = "not_found"
	KindAuthentication = "authentication_error"
	KindUpstream       = "upstream_unavailable"
	KindInternal       = "internal_error"
)

// ValidationError represents a malformed request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Kind returns the error kind.
func (e *ValidationError) Kind() string { return KindValidation }

// PermissionDeniedError is returned when the effective policy forbids a
// request category.
type PermissionDeniedError struct {
	Username string
	Category string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %q does not have permission to request %ss", e.Username, e.Category)
}

// Kind returns the error kind.
func (e *PermissionDeniedError) Kind() string { return KindPermission }

// NotFoundError is returned when the addressed record does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Kind returns the error kind.
func (e *NotFoundError) Kind() string { return KindNotFound }

// AuthenticationError is returned when a credential is missing, invalid or revoked.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// Kind returns the error kind.
func (e *AuthenticationError) Kind() string { return KindAuthentication }

// UpstreamError represents a failure of an external collaborator.
type UpstreamError struct {
	Service string
	Cause   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Kind returns the error kind.
func (e *UpstreamError) Kind() string { return KindUpstream }

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) string {
	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindInternal
}
