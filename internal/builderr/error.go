package builderr

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a build error.
type Code string

const (
	MissingDirectory     Code = "MISSING_DIRECTORY"
	TransformationFailed Code = "TRANSFORMATION_FAILED"
	ObservationFailed    Code = "OBSERVATION_FAILED"
	PluginNotFound       Code = "PLUGIN_NOT_FOUND"
	InvalidPlugin        Code = "INVALID_PLUGIN"
	MissingDestDir       Code = "MISSING_DEST_DIR"
	DirNotEmpty          Code = "DIR_NOT_EMPTY"
	InvalidConfig        Code = "INVALID_CONFIG"
	SessionActive        Code = "SESSION_ACTIVE"
)

// ErrAborted is returned by a readiness computation that was superseded by an
// invalidation. It is never shown to the user.
var ErrAborted = errors.New("aborted")

// Error is a build failure enriched with the node and file it concerns.
// Line and Column are 1-based; zero means unknown.
type Error struct {
	Code      Code
	Message   string
	NodeID    string
	InputDir  string
	OutputDir string
	File      string
	Line      int
	Column    int
	// Creator is the id of the node that produced File, when it could be resolved.
	Creator string
	Path    string
	Err     error
}

// New returns an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with the given code wrapping err.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.NodeID != "" {
		fmt.Fprintf(&b, " in %s", e.NodeID)
	}
	if e.File != "" {
		fmt.Fprintf(&b, " (%s", e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
			if e.Column > 0 {
				fmt.Fprintf(&b, ":%d", e.Column)
			}
		}
		b.WriteString(")")
	}
	switch {
	case e.Message != "" && e.Err != nil:
		fmt.Fprintf(&b, ": %s: %s", e.Message, e.Err)
	case e.Message != "":
		fmt.Fprintf(&b, ": %s", e.Message)
	case e.Err != nil:
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	return b.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsAborted reports whether err is, or wraps, ErrAborted.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
