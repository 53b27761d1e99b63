package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Code classifies an error. Every failure surfaced by docstore carries exactly one code.
type Code int

const (
	Internal Code = iota + 1
	// Connection indicates the backend is unreachable, the address is malformed or authentication failed
	Connection
	// Validation indicates a malformed document or a violated backend constraint (duplicate key, validator)
	Validation
	// InvalidExpression indicates an unknown operator or an ill-typed operand in a filter or sort
	InvalidExpression
	// ConflictingProjection indicates a projection mixing inclusion and exclusion
	ConflictingProjection
	// InvalidStage indicates a malformed aggregation stage
	InvalidStage
	// NotFound indicates the target of an operation does not exist
	NotFound
	// ClosedHandle indicates the client was used after Close
	ClosedHandle
)

var codeNames = map[Code]string{
	Internal:              "internal",
	Connection:            "connection",
	Validation:            "validation",
	InvalidExpression:     "invalid_expression",
	ConflictingProjection: "conflicting_projection",
	InvalidStage:          "invalid_stage",
	NotFound:              "not_found",
	ClosedHandle:          "closed_handle",
}

// String returns the code's name
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON renders the code as its name
func (c Code) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// ErrClosedHandle is returned by every client call made after Close
var ErrClosedHandle = New(ClosedHandle, "client is closed")

// Error is a custom error
type Error struct {
	Code     Code     `json:"code"`
	Messages []string `json:"messages"`
	Err      error    `json:"-"`
}

// Error returns the Error as a json string
func (e *Error) Error() string {
	if e.Code == 0 {
		e.Code = Internal
	}
	type rendered struct {
		Code     Code     `json:"code"`
		Messages []string `json:"messages,omitempty"`
		Err      string   `json:"err,omitempty"`
	}
	r := rendered{Code: e.Code, Messages: e.Messages}
	if e.Err != nil {
		r.Err = e.Err.Error()
	}
	bits, _ := json.Marshal(r)
	return string(bits)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// RemoveError removes the error from the Error and leaves it's messages and code
func (e *Error) RemoveError() *Error {
	return &Error{
		Code:     e.Code,
		Messages: e.Messages,
		Err:      nil,
	}
}

// Extract extracts the custom Error from the given error
func Extract(err error) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return &Error{
		Code:     0,
		Messages: nil,
		Err:      err,
	}
}

// Is returns true if the error carries the given code
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// New creates a new error with the given code
func New(code Code, msg string, args ...any) error {
	return &Error{
		Code:     code,
		Messages: []string{fmt.Sprintf(msg, args...)},
	}
}

// Wrap wraps the given error and returns a new one. Wrapping a nil error returns nil.
// A code of 0 keeps the code of an already wrapped error.
func Wrap(err error, code Code, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if stderrors.As(err, &existing) {
		e := &Error{
			Code:     existing.Code,
			Messages: append([]string{}, existing.Messages...),
			Err:      existing.Err,
		}
		if msg != "" {
			e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
		}
		if code > 0 {
			e.Code = code
		}
		return e
	}
	e := &Error{
		Code: code,
		Err:  err,
	}
	if e.Code == 0 {
		e.Code = Internal
	}
	if msg != "" {
		e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
	}
	return e
}
