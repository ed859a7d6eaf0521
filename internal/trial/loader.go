package trial

import (
	"TrialStats/internal/engine/counterfile"
	"TrialStats/internal/engine/protocol"
	"TrialStats/internal/engine/run"
	"TrialStats/internal/logger"
	"fmt"
	"os"
)

// ReadRun parses a producer and a consumer log and pairs them into a Run.
func ReadRun(producerPath, consumerPath string) (*run.Run, error) {
	pf, err := os.Open(producerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: producer log %s: %v", ErrMissingFile, producerPath, err)
	}
	defer pf.Close()
	producer, err := protocol.ParseProducerLog(pf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse producer log %s: %w", producerPath, err)
	}

	cf, err := os.Open(consumerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: consumer log %s: %v", ErrMissingFile, consumerPath, err)
	}
	defer cf.Close()
	consumer, err := protocol.ParseConsumerLog(cf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse consumer log %s: %w", consumerPath, err)
	}

	r, err := run.NewRun(counterfile.NewProducerFile(producer), counterfile.NewConsumerFile(consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to build run from %s and %s: %w", producerPath, consumerPath, err)
	}
	return r, nil
}

// Load reads every run of every condition in def. The first failing run aborts the load.
func Load(def *Definition) ([]run.Group, error) {
	groups := make([]run.Group, 0, len(def.Conditions))
	for _, c := range def.Conditions {
		g := run.Group{Condition: c.Name, Runs: make([]*run.Run, 0, len(c.Runs))}
		for _, paths := range c.Runs {
			r, err := ReadRun(paths.Producer, paths.Consumer)
			if err != nil {
				return nil, fmt.Errorf("condition %s: %w", c.Name, err)
			}
			g.Runs = append(g.Runs, r)
		}
		logger.Debugf("Loaded %d runs for condition %s.", len(g.Runs), c.Name)
		groups = append(groups, g)
	}
	return groups, nil
}
