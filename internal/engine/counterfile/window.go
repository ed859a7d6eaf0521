// Package counterfile holds the windowed view over one endpoint's counter log.
//
// Every quantity a window exposes is the difference between the last and the first
// entry of some cumulative counter. Interior entries never change a result.
package counterfile

import (
	"TrialStats/internal/core/model"
	"errors"
)

// ErrEmptySequence is returned by every window accessor when the file has no entries.
var ErrEmptySequence = errors.New("counter file has no entries")

// Entry is the constraint satisfied by both role-specific log entries.
type Entry interface {
	model.ProducerEntry | model.ConsumerEntry
	Counters() model.Snapshot
}

// Window is an immutable, ordered sequence of entries for one endpoint in one trial.
type Window[E Entry] struct {
	entries []E
}

// NewWindow copies entries into a new window.
func NewWindow[E Entry](entries []E) Window[E] {
	owned := make([]E, len(entries))
	copy(owned, entries)
	return Window[E]{entries: owned}
}

// Len returns the number of entries.
func (w Window[E]) Len() int {
	return len(w.entries)
}

// At returns the entry at index i.
func (w Window[E]) At(i int) (E, bool) {
	if i < 0 || i >= len(w.entries) {
		var zero E
		return zero, false
	}
	return w.entries[i], true
}

// Entries returns a copy of the entries.
func (w Window[E]) Entries() []E {
	out := make([]E, len(w.entries))
	copy(out, w.entries)
	return out
}

// TotalRXBytes is the number of bytes received over the window.
func (w Window[E]) TotalRXBytes() (int64, error) {
	return delta(w, func(e E) int64 { return e.Counters().RxBytes })
}

// TotalTXBytes is the number of bytes transmitted over the window.
func (w Window[E]) TotalTXBytes() (int64, error) {
	return delta(w, func(e E) int64 { return e.Counters().TxBytes })
}

func (w Window[E]) ends() (first, last E, err error) {
	if len(w.entries) == 0 {
		return first, last, ErrEmptySequence
	}
	return w.entries[0], w.entries[len(w.entries)-1], nil
}

// delta returns last-first of the counter selected by field. A window holding a single
// entry has no span, so the absolute counter of that entry is returned instead.
func delta[E Entry](w Window[E], field func(E) int64) (int64, error) {
	first, last, err := w.ends()
	if err != nil {
		return 0, err
	}
	if len(w.entries) == 1 {
		return field(first), nil
	}
	return field(last) - field(first), nil
}
