package app

import "fmt"

// DomainError is a caller-visible failure. Status becomes the HTTP
// status, Code is a stable machine identifier, and Message is the exact
// string the API contract promises (e.g. "Invalid update request").
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// domainError is shorthand for the service layer's error returns.
func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
