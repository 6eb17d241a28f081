// Package errtag provides errors annotated with free-form context tags.
//
// Tags are string key/value pairs attached to an error as it travels up the
// stack (the input path, the offending pattern, the underlying system
// message). Reporters iterate them to print structured diagnostics.
package errtag

import (
	"fmt"
	"sort"
)

type Error struct {
	msg   string
	cause error
	tags  map[string]string
}

// New creates a new tagged error.
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Wrap annotates an existing error with a message that can carry tags.
// Returns nil if err is nil.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{msg: msg, cause: err}
}

// Add attaches a context tag and returns the error for chaining.
func (e *Error) Add(key, value string) *Error {
	if e.tags == nil {
		e.tags = make(map[string]string)
	}
	e.tags[key] = value
	return e
}

// Get returns the value of a tag, or the empty string.
func (e *Error) Get(key string) string {
	return e.tags[key]
}

// Tags returns the tag keys in sorted order.
func (e *Error) Tags() []string {
	keys := make([]string, 0, len(e.tags))
	for key := range e.tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause)
	}
	return e.msg
}

// Message returns the message without the cause chain.
func (e *Error) Message() string {
	return e.msg
}

// Cause returns the underlying error, compatible with github.com/pkg/errors.
func (e *Error) Cause() error {
	return e.cause
}

func (e *Error) Unwrap() error {
	return e.cause
}
