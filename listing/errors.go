package listing

import (
	"errors"
	"fmt"
	"sort"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to every domain error so callers outside Go
// (HTTP clients, logs) can match on a stable value.
const (
	CodeValidation   = "LISTING_VALIDATION"
	CodeNotFound     = "LISTING_NOT_FOUND"
	CodeForbidden    = "LISTING_FORBIDDEN"
	CodeConflict     = "LISTING_CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeDependency   = "DEPENDENCY_FAILURE"
)

// NewValidationError reports malformed or out-of-range input. The offending
// field names travel in the error metadata under "fields".
func NewValidationError(message string, fields ...string) error {
	e := goerrors.New(message, goerrors.CategoryValidation)
	e.TextCode = CodeValidation
	if len(fields) > 0 {
		sorted := append([]string(nil), fields...)
		sort.Strings(sorted)
		e.Metadata = map[string]any{"fields": sorted}
	}
	return e
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(kind, id string) error {
	e := goerrors.New(fmt.Sprintf("%s %q not found", kind, id), goerrors.CategoryNotFound)
	e.TextCode = CodeNotFound
	e.Metadata = map[string]any{"kind": kind, "id": id}
	return e
}

// NewForbiddenError reports a requester acting on an entity they do not own.
func NewForbiddenError(message string) error {
	e := goerrors.New(message, goerrors.CategoryAuthz)
	e.TextCode = CodeForbidden
	return e
}

// NewConflictError reports a uniqueness violation.
func NewConflictError(message string) error {
	e := goerrors.New(message, goerrors.CategoryConflict)
	e.TextCode = CodeConflict
	return e
}

// NewUnauthorizedError reports missing or invalid credentials.
func NewUnauthorizedError(message string) error {
	e := goerrors.New(message, goerrors.CategoryAuth)
	e.TextCode = CodeUnauthorized
	return e
}

// WrapDependency marks err as a failure of an external collaborator (store,
// cache, broker). Errors that already carry a domain category are returned
// unchanged.
func WrapDependency(err error, message string) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsNotFound(err) || IsForbidden(err) || IsConflict(err) || IsUnauthorized(err) || IsDependency(err) {
		return err
	}
	e := goerrors.Wrap(err, goerrors.CategoryExternal, message)
	e.TextCode = CodeDependency
	return e
}

func IsValidation(err error) bool   { return hasCategory(err, goerrors.CategoryValidation) }
func IsNotFound(err error) bool     { return hasCategory(err, goerrors.CategoryNotFound) }
func IsForbidden(err error) bool    { return hasCategory(err, goerrors.CategoryAuthz) }
func IsConflict(err error) bool     { return hasCategory(err, goerrors.CategoryConflict) }
func IsUnauthorized(err error) bool { return hasCategory(err, goerrors.CategoryAuth) }
func IsDependency(err error) bool   { return hasCategory(err, goerrors.CategoryExternal) }

// Fields returns the field names attached to a validation error.
func Fields(err error) []string {
	var e *goerrors.Error
	if !errors.As(err, &e) || e.Metadata == nil {
		return nil
	}
	fields, _ := e.Metadata["fields"].([]string)
	return fields
}

// Message returns the client-safe message of a domain error. Dependency
// failures never expose the wrapped cause.
func Message(err error) string {
	var e *goerrors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func hasCategory(err error, category goerrors.Category) bool {
	var e *goerrors.Error
	return errors.As(err, &e) && e.Category == category
}
