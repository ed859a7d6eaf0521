package manager

import (
	"TrialStats/internal/alerter"
	"TrialStats/internal/config"
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/engine/counterfile"
	"TrialStats/internal/model"
	"TrialStats/internal/trial"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	name    string
	batches []*coremodel.Batch
	err     error
	closed  bool
}

func (w *recordingWriter) Name() string { return w.name }

func (w *recordingWriter) Write(b *coremodel.Batch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, b)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return w.err
}

type countingNotifier struct{ sent int }

func (n *countingNotifier) Send(string, string) error {
	n.sent++
	return nil
}

var _ model.Writer = (*recordingWriter)(nil)

// writeRun writes a two-sample run whose producer sends 1000 payload bytes and whose
// consumer receives `received` of them, with consumer txBytes ending at consumerTX.
func writeRun(t *testing.T, dir string, received, consumerTX int64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	producer := "1,0,0,1,lo,0,0\n2,10,1000,2,lo,100,1200\n"
	consumer := fmt.Sprintf("1,0,0,1,lo,0,0\n2,10,%d,2,lo,%d,%d\n", received, received+200, consumerTX)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "producer.log"), []byte(producer), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "consumer.log"), []byte(consumer), 0o644))
}

func setupLogs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeRun(t, filepath.Join(root, "tcp", "n1"), 1000, 100)
	writeRun(t, filepath.Join(root, "tcp", "n2"), 800, 300)
	writeRun(t, filepath.Join(root, "tcp", "h1"), 500, 50)
	require.NoError(t, os.WriteFile(filepath.Join(root, "tcp", "run.json"), []byte(`[
  [{"producer": "n1/producer.log", "consumer": "n1/consumer.log"},
   {"producer": "n2/producer.log", "consumer": "n2/consumer.log"}],
  [{"producer": "h1/producer.log", "consumer": "h1/consumer.log"}]
]`), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "lrdp"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lrdp", "run.json"),
		[]byte(`[[{"producer": "gone/producer.log", "consumer": "gone/consumer.log"}]]`), 0o644))
	return root
}

func testConfig(root string, protocols ...config.ProtocolDef) *config.Config {
	return &config.Config{Analyzer: config.AnalyzerConfig{LogRoot: root, Protocols: protocols}}
}

var tcp = config.ProtocolDef{
	Name:                "tcp",
	Definition:          "tcp/run.json",
	Conditions:          []string{"Normal", "Horrible"},
	BandwidthConditions: []string{"Normal"},
}

func TestAnalyzeProtocol(t *testing.T) {
	m := newManager(testConfig(setupLogs(t), tcp), nil, nil)

	report, err := m.AnalyzeProtocol(tcp)
	require.NoError(t, err)

	assert.Equal(t, "tcp", report.Protocol)
	require.Len(t, report.Conditions, 2)
	assert.Equal(t, "Normal", report.Conditions[0].Condition)
	assert.Equal(t, 2, report.Conditions[0].Runs)
	assert.InDelta(t, 0.1, report.Conditions[0].Loss, 1e-12)
	assert.InDelta(t, 0.5, report.Conditions[1].Loss, 1e-12)

	// Bandwidth only over the two Normal runs: consumer (100+300)/2, producer 1200.
	assert.Equal(t, []string{"Normal"}, report.BandwidthConditions)
	assert.Equal(t, []float64{0, 200}, report.Bandwidth.ConsumerTX)
	assert.Equal(t, []float64{0, 1400}, report.Bandwidth.Combined)
}

func TestAnalyzeProtocol_AllConditionsByDefault(t *testing.T) {
	p := tcp
	p.BandwidthConditions = nil
	m := newManager(testConfig(setupLogs(t), p), nil, nil)

	report, err := m.AnalyzeProtocol(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Normal", "Horrible"}, report.BandwidthConditions)
	assert.Equal(t, []float64{0, 150}, report.Bandwidth.ConsumerTX)
}

func TestAnalyzeProtocol_UnknownBandwidthCondition(t *testing.T) {
	p := tcp
	p.BandwidthConditions = []string{"Stormy"}
	m := newManager(testConfig(setupLogs(t), p), nil, nil)

	_, err := m.AnalyzeProtocol(p)
	assert.ErrorContains(t, err, "Stormy")
}

func TestAnalyze_PartialFailure(t *testing.T) {
	lrdp := config.ProtocolDef{Name: "lrdp", Definition: "lrdp/run.json"}
	m := newManager(testConfig(setupLogs(t), tcp, lrdp), nil, nil)

	batch, err := m.Analyze()
	require.Error(t, err)
	assert.ErrorIs(t, err, trial.ErrMissingFile)
	assert.Contains(t, err.Error(), "protocol lrdp")

	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, []string{"tcp"}, batch.Protocols())
}

func TestRun_WritesAndAlerts(t *testing.T) {
	good := &recordingWriter{name: "good"}
	bad := &recordingWriter{name: "bad", err: errors.New("disk full")}
	n := &countingNotifier{}
	a := alerter.NewAlerter(&config.AlerterConfig{
		Enabled: true,
		Rules:   []config.AlerterRule{{Protocol: "tcp", Condition: "Horrible", Metric: "loss", Threshold: 0.2}},
	}, n)
	m := newManager(testConfig(setupLogs(t), tcp), []model.Writer{good, bad}, a)

	batch, err := m.Run()
	require.NoError(t, err)

	require.Len(t, good.batches, 1)
	assert.Same(t, batch, good.batches[0])
	assert.Len(t, bad.batches, 1)
	assert.Equal(t, 1, n.sent)
}

func TestRun_NothingToWrite(t *testing.T) {
	w := &recordingWriter{name: "w"}
	lrdp := config.ProtocolDef{Name: "lrdp", Definition: "lrdp/run.json"}
	m := newManager(testConfig(setupLogs(t), lrdp), []model.Writer{w}, nil)

	batch, err := m.Run()
	assert.Error(t, err)
	assert.Empty(t, batch.Reports)
	assert.Empty(t, w.batches)
}

func TestClose(t *testing.T) {
	a := &recordingWriter{name: "a"}
	b := &recordingWriter{name: "b", err: errors.New("boom")}
	m := newManager(testConfig(t.TempDir(), tcp), []model.Writer{a, b}, nil)

	err := m.Close()
	assert.ErrorContains(t, err, "writer b")
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestNewManager_BuildsEnabledWriters(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root, tcp)
	cfg.Analyzer.Writers = []config.WriterDef{
		{Type: "text", Enabled: true, Text: config.TextConfig{RootPath: filepath.Join(root, "out")}},
		{Type: "gob", Enabled: false},
	}

	m, err := NewManager(cfg)
	require.NoError(t, err)
	require.Len(t, m.writers, 1)
	assert.Equal(t, "text", m.writers[0].Name())
	assert.Nil(t, m.alerter)
}

func TestAnalyzeProtocol_EmptyLog(t *testing.T) {
	root := setupLogs(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "tcp", "h1", "consumer.log"), nil, 0o644))
	m := newManager(testConfig(root, tcp), nil, nil)

	_, err := m.AnalyzeProtocol(tcp)
	assert.ErrorIs(t, err, counterfile.ErrEmptySequence)
}
