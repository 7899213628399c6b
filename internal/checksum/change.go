// Package checksum tracks the content of a directory between builds and
// reports which files were added, changed or removed.
package checksum

import "fmt"

// Kind is the type of a file change.
type Kind int

const (
	Added Kind = iota + 1
	Changed
	Removed
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Change records one file difference. File is relative to the directory the
// change was observed in.
type Change struct {
	File string `json:"file"`
	Kind Kind   `json:"kind"`
}

func (c Change) String() string {
	return c.Kind.String() + " " + c.File
}

// MarshalText lets change kinds appear by name in JSON logs and events.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Files returns the file names in changes, in order.
func Files(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.File
	}
	return out
}
