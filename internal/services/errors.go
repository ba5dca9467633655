package services

import "fmt"

// Typed errors shared by the services. Controllers match them with
// errors.As and translate to HTTP status codes: NotFoundError -> 404,
// ConflictError -> 409, ValidationError -> 400, UnauthorizedError -> 403.

// NotFoundError means a referenced driver/bus/route/journey does not
// exist or is outside the caller's company.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// ConflictError means a resource is already held by someone else,
// e.g. a bus bound to a different on-duty driver. Message names the
// conflicting resource so the operator knows what to release.
type ConflictError struct {
	Resource string
	ID       uint
	Message  string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ValidationError means the request carried malformed or missing
// required fields.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UnauthorizedError means the caller's role or company does not permit
// the operation.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}
