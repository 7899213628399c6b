package checksum

// Coalesce folds repeated events for the same file into one change, keeping
// files in order of first appearance. A file added then removed within one
// batch disappears entirely.
func Coalesce(events []Change) []Change {
	kinds := make(map[string]Kind, len(events))
	var order []string

	for _, ev := range events {
		prev, seen := kinds[ev.File]
		if !seen {
			order = append(order, ev.File)
			kinds[ev.File] = ev.Kind
			continue
		}
		switch ev.Kind {
		case Added:
			if prev == Removed || prev == Changed {
				kinds[ev.File] = Changed
			} else if prev == 0 {
				kinds[ev.File] = Added
			}
		case Changed:
			if prev == 0 {
				kinds[ev.File] = Changed
			}
		case Removed:
			if prev == Added {
				kinds[ev.File] = 0
			} else {
				kinds[ev.File] = Removed
			}
		}
	}

	out := make([]Change, 0, len(order))
	for _, file := range order {
		if k := kinds[file]; k != 0 {
			out = append(out, Change{File: file, Kind: k})
		}
	}
	return out
}
