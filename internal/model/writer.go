package model

import "TrialStats/internal/core/model"

// Writer defines a generic interface for persisting or publishing an analysis batch.
type Writer interface {
	// Name identifies the writer in logs.
	Name() string

	// Write takes a finished batch and persists it. A batch may carry any number of
	// protocol reports, including none.
	Write(batch *model.Batch) error

	// Close releases connections and file handles held by the writer.
	Close() error
}
