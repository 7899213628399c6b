package graph

import (
	"sync"

	"github.com/specialistvlad/gobblego/internal/checksum"
)

// inputChanges accumulates the change sets an input announces between two
// computations. Sources announce precise changes; for any other input, or
// after an announcement without details, the input directory is rescanned
// and diffed against the last successful computation.
type inputChanges struct {
	explicit bool
	tracker  *checksum.Tracker

	mu      sync.Mutex
	pending []checksum.Change
	unknown bool
	primed  bool
}

func newInputChanges(input Node) *inputChanges {
	return &inputChanges{
		explicit: input.Kind() == KindSource,
		tracker:  checksum.NewTracker(),
	}
}

func (ic *inputChanges) add(changes []checksum.Change) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if changes == nil {
		ic.unknown = true
		return
	}
	ic.pending = append(ic.pending, changes...)
}

// resolve returns the changes in dir since the last commit. The returned
// commit func must be called once the computation that consumed them
// succeeded.
func (ic *inputChanges) resolve(dir string) ([]checksum.Change, func(), error) {
	ic.mu.Lock()
	useExplicit := ic.explicit && ic.primed && !ic.unknown
	pending := ic.pending
	ic.mu.Unlock()

	if useExplicit {
		changes := checksum.Coalesce(pending)
		return changes, func() {
			ic.tracker.Apply(dir, changes)
			ic.clear(len(pending))
		}, nil
	}

	snap, err := checksum.Scan(dir)
	if err != nil {
		return nil, nil, err
	}
	return ic.tracker.Diff(snap), func() {
		ic.tracker.Commit(snap)
		ic.clear(len(pending))
	}, nil
}

// clear drops the first n pending changes; later ones arrived during the
// computation and belong to the next one.
func (ic *inputChanges) clear(n int) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if n > len(ic.pending) {
		n = len(ic.pending)
	}
	ic.pending = append([]checksum.Change(nil), ic.pending[n:]...)
	ic.unknown = false
	ic.primed = true
}
