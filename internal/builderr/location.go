package builderr

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/hashicorp/hcl/v2"
)

// Location is a best-effort position inside a source file.
type Location struct {
	File   string
	Line   int
	Column int
}

// Locator is implemented by plugin errors that know where they happened.
type Locator interface {
	Location() Location
}

var (
	lineRe   = regexp.MustCompile(`line (\d+)`)
	columnRe = regexp.MustCompile(`column (\d+)`)
	pairRe   = regexp.MustCompile(`(\d+):(\d+)`)
)

// ExtractLocation pulls file, line and column out of err. Explicit locations
// win, then hcl diagnostic subjects, then patterns in the message text.
func ExtractLocation(err error) Location {
	if err == nil {
		return Location{}
	}

	var loc Location
	var locator Locator
	if errors.As(err, &locator) {
		loc = locator.Location()
	}

	if loc.Line == 0 && loc.Column == 0 {
		if rng := diagnosticSubject(err); rng != nil {
			if loc.File == "" {
				loc.File = rng.Filename
			}
			loc.Line = rng.Start.Line
			loc.Column = rng.Start.Column
		}
	}

	msg := err.Error()
	if loc.Line == 0 {
		if m := lineRe.FindStringSubmatch(msg); m != nil {
			loc.Line, _ = strconv.Atoi(m[1])
		}
	}
	if loc.Column == 0 {
		if m := columnRe.FindStringSubmatch(msg); m != nil {
			loc.Column, _ = strconv.Atoi(m[1])
		}
	}
	if loc.Line == 0 && loc.Column == 0 {
		if m := pairRe.FindStringSubmatch(msg); m != nil {
			loc.Line, _ = strconv.Atoi(m[1])
			loc.Column, _ = strconv.Atoi(m[2])
		}
	}
	return loc
}

func diagnosticSubject(err error) *hcl.Range {
	var diags hcl.Diagnostics
	if errors.As(err, &diags) {
		for _, d := range diags {
			if d.Subject != nil {
				return d.Subject
			}
		}
	}
	var diag *hcl.Diagnostic
	if errors.As(err, &diag) && diag.Subject != nil {
		return diag.Subject
	}
	return nil
}
