package factory

import (
	"TrialStats/internal/config"
	"TrialStats/internal/logger"
	"TrialStats/internal/model"
	"fmt"
	"sort"
)

// WriterFactory creates a writer from its config definition.
type WriterFactory func(def config.WriterDef) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Types returns the registered writer types, sorted.
func Types() []string {
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Create builds every enabled writer in the config. An unknown type fails the whole
// call; a writer whose constructor fails is skipped with a warning.
func Create(cfg *config.Config) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Analyzer.Writers {
		if !def.Enabled {
			continue
		}
		logger.Infof("Creating writer of type '%s'", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		w, err := factory(def)
		if err != nil {
			logger.Warningf("Failed to create writer type '%s': %v, skipping.", def.Type, err)
			continue
		}
		writers = append(writers, w)
	}

	return writers, nil
}
