package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMissingToken     = errors.New("response carried no access token")
	ErrNoPendingFlow    = errors.New("no pending verification or reset in progress")
)

// Error is an application failure: the API answered, but with an error status
// or success=false.
type Error struct {
	Status  int
	Message string
	Errors  map[string][]string
}

func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	}

	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Errors[field], " "))
	}
	return fmt.Sprintf("api error (%d): %s [%s]", e.Status, e.Message, strings.Join(parts, "; "))
}

// FieldError returns the first message recorded against field.
func (e *Error) FieldError(field string) (string, bool) {
	msgs := e.Errors[field]
	if len(msgs) == 0 {
		return "", false
	}
	return msgs[0], true
}
