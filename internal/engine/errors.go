package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies one kind of engine failure. Codes are stable: clients
// key on them, only Unavailable is worth retrying.
type Code string

const (
	CodeNotAuthorized Code = "not_authorized"
	CodeNotFound      Code = "not_found"
	CodeInvalidInput  Code = "invalid_input"
	CodeInvalidState  Code = "invalid_state"
	CodeConflict      Code = "scheduling_conflict"
	CodeUnavailable   Code = "unavailable"
)

type Error struct {
	Code    Code
	Message string
	// ConflictingIDs is set only for CodeConflict: the scheduled
	// rehearsals occupying the requested venue window.
	ConflictingIDs []string
}

func (e *Error) Error() string {
	if len(e.ConflictingIDs) > 0 {
		return fmt.Sprintf("%s: %s (conflicts: %s)", e.Code, e.Message, strings.Join(e.ConflictingIDs, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func notAuthorized(msg string) *Error { return &Error{Code: CodeNotAuthorized, Message: msg} }
func notFound(what string) *Error     { return &Error{Code: CodeNotFound, Message: what + " not found"} }
func invalidInput(msg string) *Error  { return &Error{Code: CodeInvalidInput, Message: msg} }
func invalidState(msg string) *Error  { return &Error{Code: CodeInvalidState, Message: msg} }
func unavailable(msg string) *Error   { return &Error{Code: CodeUnavailable, Message: msg} }
func conflict(ids []string) *Error {
	return &Error{Code: CodeConflict, Message: "venue already booked for this time", ConflictingIDs: ids}
}

// CodeOf extracts the failure code, or "" for errors that did not come out
// of the engine.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	return CodeOf(err) == CodeUnavailable
}
