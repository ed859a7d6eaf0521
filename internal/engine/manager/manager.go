package manager

import (
	"TrialStats/internal/alerter"
	"TrialStats/internal/config"
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/engine/aggregator"
	"TrialStats/internal/engine/run"
	"TrialStats/internal/factory"
	"TrialStats/internal/logger"
	"TrialStats/internal/model"
	"TrialStats/internal/notification"
	_ "TrialStats/internal/probe"  // Registers the nats writer
	"TrialStats/internal/trial"
	_ "TrialStats/internal/writer" // Registers the file and database writers
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Manager orchestrates the analysis of every configured protocol and hands the
// resulting batch to the writers and the alerter.
type Manager struct {
	cfg     *config.Config
	writers []model.Writer
	alerter *alerter.Alerter
}

// NewManager creates a new Manager.
func NewManager(cfg *config.Config) (*Manager, error) {
	writers, err := factory.Create(cfg)
	if err != nil {
		return nil, err
	}

	var alertr *alerter.Alerter
	if cfg.Alerter.Enabled {
		var notifier model.Notifier
		if cfg.SMTP.Host != "" { // Simple check to see if email is configured
			notifier, err = notification.NewEmailNotifier(cfg.SMTP)
			if err != nil {
				return nil, fmt.Errorf("failed to create email notifier: %w", err)
			}
		} else {
			logger.Warning("Alerter is enabled in config, but no notifiers are configured. Alerts will only be logged.")
		}
		alertr = alerter.NewAlerter(&cfg.Alerter, notifier)
		logger.Info("Alerter enabled and initialized.")
	}

	return newManager(cfg, writers, alertr), nil
}

func newManager(cfg *config.Config, writers []model.Writer, alertr *alerter.Alerter) *Manager {
	return &Manager{cfg: cfg, writers: writers, alerter: alertr}
}

// AnalyzeProtocol loads every run of a protocol and summarizes it.
func (m *Manager) AnalyzeProtocol(p config.ProtocolDef) (*coremodel.Report, error) {
	// 1. Load and validate the trial definition
	def, err := trial.LoadDefinition(m.cfg.DefinitionPath(p), p.Conditions)
	if err != nil {
		return nil, err
	}

	// 2. Read and pair every log
	groups, err := trial.Load(def)
	if err != nil {
		return nil, err
	}

	// 3. Pick the runs that feed the bandwidth curve
	bwConditions := p.BandwidthConditions
	if len(bwConditions) == 0 {
		bwConditions = def.ConditionNames()
	}
	bwRuns, err := selectRuns(groups, bwConditions)
	if err != nil {
		return nil, err
	}

	report := &coremodel.Report{
		Protocol:            p.Name,
		Conditions:          aggregator.SummarizeGroups(groups),
		BandwidthConditions: bwConditions,
		Bandwidth:           aggregator.Bandwidth(bwRuns),
	}
	logger.Infof("[%s] analyzed %d conditions, bandwidth over %d runs.", p.Name, len(report.Conditions), len(bwRuns))
	return report, nil
}

func selectRuns(groups []run.Group, conditions []string) ([]*run.Run, error) {
	byName := make(map[string][]*run.Run, len(groups))
	for _, g := range groups {
		byName[g.Condition] = g.Runs
	}

	var runs []*run.Run
	for _, c := range conditions {
		rs, ok := byName[c]
		if !ok {
			return nil, fmt.Errorf("bandwidth condition '%s' is not in the trial definition", c)
		}
		runs = append(runs, rs...)
	}
	return runs, nil
}

// Analyze analyzes every protocol concurrently. The batch holds the reports that
// succeeded, in config order; the error joins the failures.
func (m *Manager) Analyze() (*coremodel.Batch, error) {
	protocols := m.cfg.Analyzer.Protocols
	reports := make([]*coremodel.Report, len(protocols))
	errs := make([]error, len(protocols))

	var wg sync.WaitGroup
	wg.Add(len(protocols))
	for i, p := range protocols {
		go func(i int, p config.ProtocolDef) {
			defer wg.Done()
			report, err := m.AnalyzeProtocol(p)
			if err != nil {
				errs[i] = fmt.Errorf("protocol %s: %w", p.Name, err)
				logger.Errorf("Failed to analyze protocol %s: %v", p.Name, err)
				return
			}
			reports[i] = report
		}(i, p)
	}
	wg.Wait()

	batch := &coremodel.Batch{ID: xid.New().String(), CreatedAt: time.Now()}
	for _, r := range reports {
		if r != nil {
			batch.Reports = append(batch.Reports, r)
		}
	}
	return batch, errors.Join(errs...)
}

// Run analyzes, writes the batch to every writer, then evaluates the alert rules.
// Writer and alerter failures are logged and do not fail the run.
func (m *Manager) Run() (*coremodel.Batch, error) {
	batch, err := m.Analyze()
	if len(batch.Reports) == 0 {
		return batch, err
	}

	m.write(batch)

	if m.alerter != nil {
		if _, aerr := m.alerter.Notify(batch); aerr != nil {
			logger.Errorf("Alerter: %v", aerr)
		}
	}
	return batch, err
}

func (m *Manager) write(batch *coremodel.Batch) {
	logger.Infof("Writing batch %s to %d writer(s).", batch.ID, len(m.writers))

	var wg sync.WaitGroup
	wg.Add(len(m.writers))
	for _, w := range m.writers {
		go func(w model.Writer) {
			defer wg.Done()
			if err := w.Write(batch); err != nil {
				logger.Errorf("Error writing batch %s with writer %s: %v", batch.ID, w.Name(), err)
			}
		}(w)
	}
	wg.Wait()
}

// Close closes every writer.
func (m *Manager) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close writer %s: %w", w.Name(), err))
		}
	}
	logger.Info("Manager closed.")
	return errors.Join(errs...)
}

// NewAnalyzer creates a Manager without writers or alerter, for read-only analysis.
func NewAnalyzer(cfg *config.Config) *Manager {
	return newManager(cfg, nil, nil)
}

// Protocol returns the configuration of a protocol by name.
func (m *Manager) Protocol(name string) (config.ProtocolDef, bool) {
	for _, p := range m.cfg.Analyzer.Protocols {
		if p.Name == name {
			return p, true
		}
	}
	return config.ProtocolDef{}, false
}
