package env_vars

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/gobblego/internal/builderr"
)

// MissingError lists environment variables a file references but the
// process does not define.
type MissingError struct {
	File   string
	Line   int
	Column int
	Names  []string
}

var _ builderr.Locator = (*MissingError)(nil)

// Location points at the first undefined variable.
func (e *MissingError) Location() builderr.Location {
	return builderr.Location{File: e.File, Line: e.Line, Column: e.Column}
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: undefined environment variables: %s", e.File, strings.Join(e.Names, ", "))
}
