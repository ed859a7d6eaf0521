package writer

import (
	"TrialStats/internal/config"
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/factory"
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleBatch() *coremodel.Batch {
	return &coremodel.Batch{
		ID:        "cq1batch",
		CreatedAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		Reports: []*coremodel.Report{
			{
				Protocol: "tcp",
				Conditions: []coremodel.ConditionSummary{
					{Condition: "Normal", Runs: 3, Loss: 0.0, Overhead: 0.31, OverheadPerPacket: 52.5, LostPayloadBytes: 0},
					{Condition: "Horrible", Runs: 3, Loss: 0.25, Overhead: 0.45, OverheadPerPacket: 80, LostPayloadBytes: 2500},
				},
				BandwidthConditions: []string{"Normal"},
				Bandwidth: coremodel.BandwidthSeries{
					ConsumerTX: []float64{0, 60, 100},
					ProducerTX: []float64{0, 20, math.NaN()},
					Combined:   []float64{0, 80, math.NaN()},
				},
			},
			{
				Protocol: "lrdp",
				Conditions: []coremodel.ConditionSummary{
					{Condition: "Normal", Runs: 1, Loss: math.NaN(), Overhead: 0.12, OverheadPerPacket: math.Inf(1)},
				},
				Bandwidth: coremodel.BandwidthSeries{
					ConsumerTX: []float64{0, 10},
					ProducerTX: []float64{0, 5},
					Combined:   []float64{0, 15},
				},
			},
		},
	}
}

func TestRegisteredTypes(t *testing.T) {
	types := factory.Types()
	for _, want := range []string{"text", "gob", "chart", "sqlite", "clickhouse"} {
		assert.Contains(t, types, want)
	}
}

func TestTextWriter(t *testing.T) {
	root := t.TempDir()
	w := NewTextWriter(root)
	require.NoError(t, w.Write(sampleBatch()))

	data, err := os.ReadFile(filepath.Join(root, "2024-05-01_12-30-00", "tcp.txt"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Protocol: tcp")
	assert.Contains(t, text, "Horrible")
	assert.Contains(t, text, "25.00%")
	assert.Contains(t, text, "75.00%")
	assert.Contains(t, text, "conditions [Normal]")
	assert.Contains(t, text, "NaN")

	_, err = os.Stat(filepath.Join(root, "2024-05-01_12-30-00", "lrdp.txt"))
	assert.NoError(t, err)
}

func TestWriteReportText_NoBandwidth(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportText(&buf, &coremodel.Report{Protocol: "udp"}))
	assert.Contains(t, buf.String(), "Bandwidth: no samples")
}

func TestGobWriter(t *testing.T) {
	root := t.TempDir()
	batch := sampleBatch()
	w := NewGobWriter(root)
	require.NoError(t, w.Write(batch))

	dir := filepath.Join(root, "2024-05-01_12-30-00", "tcp")
	report, err := ReadReport(filepath.Join(dir, "report.dat"))
	require.NoError(t, err)
	assert.Equal(t, "tcp", report.Protocol)
	assert.Equal(t, batch.Reports[0].Conditions, report.Conditions)
	assert.True(t, math.IsNaN(report.Bandwidth.Combined[2]))

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var summary SummaryData
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "cq1batch", summary.BatchID)
	assert.Equal(t, []string{"Normal", "Horrible"}, summary.Conditions)
	assert.Equal(t, 6, summary.TotalRuns)
	assert.Equal(t, 3, summary.BandwidthPoints)
}

func TestChartWriter(t *testing.T) {
	root := t.TempDir()
	w := NewChartWriter(config.ChartConfig{RootPath: root, Width: 800, Height: 300})
	require.NoError(t, w.Write(sampleBatch()))

	dir := filepath.Join(root, "2024-05-01_12-30-00")
	for _, name := range []string{"tcp-graph.png", "lrdp-graph.png", "bandwidth-graph.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(data, pngMagic), name)
	}
}

func TestRenderResultsChart_SingleCondition(t *testing.T) {
	reports := map[string]*coremodel.Report{
		"one condition": {
			Protocol:   "tcp",
			Conditions: []coremodel.ConditionSummary{{Condition: "Normal", Runs: 1, Loss: 0.1, Overhead: 0.2}},
		},
		"one finite condition": {
			Protocol: "tcp",
			Conditions: []coremodel.ConditionSummary{
				{Condition: "Normal", Loss: math.NaN(), Overhead: math.NaN()},
				{Condition: "Horrible", Runs: 2, Loss: 0.3, Overhead: 0.4},
				{Condition: "Degraded", Loss: math.Inf(1), Overhead: math.NaN()},
			},
		},
	}
	for name, report := range reports {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderResultsChart(&buf, report, 1, 800, 300))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRenderBandwidthChart_SinglePoint(t *testing.T) {
	report := &coremodel.Report{
		Protocol:  "tcp",
		Bandwidth: coremodel.BandwidthSeries{ConsumerTX: []float64{0}, ProducerTX: []float64{0}, Combined: []float64{0}},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderBandwidthChart(&buf, []*coremodel.Report{report}, 800, 300))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestChartWriter_SingleConditionProtocol(t *testing.T) {
	root := t.TempDir()
	batch := &coremodel.Batch{
		CreatedAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		Reports: []*coremodel.Report{
			{
				Protocol:   "quic",
				Conditions: []coremodel.ConditionSummary{{Condition: "Normal", Runs: 1, Loss: 0.1, Overhead: 0.2}},
				Bandwidth:  coremodel.BandwidthSeries{ConsumerTX: []float64{0, 10}, ProducerTX: []float64{0, 5}, Combined: []float64{0, 15}},
			},
			sampleBatch().Reports[0],
		},
	}
	w := NewChartWriter(config.ChartConfig{RootPath: root, Width: 800, Height: 300})
	require.NoError(t, w.Write(batch))

	dir := filepath.Join(root, "2024-05-01_12-30-00")
	for _, name := range []string{"quic-graph.png", "tcp-graph.png", "bandwidth-graph.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(data, pngMagic), name)
	}
}

func TestRenderFile_RemovesFailedChart(t *testing.T) {
	dir := t.TempDir()
	w := &ChartWriter{rootPath: dir, width: 800, height: 300}
	path := filepath.Join(dir, "broken.png")

	err := w.renderFile(path, func(out io.Writer) error {
		out.Write(pngMagic)
		return errors.New("render failed")
	})
	assert.ErrorContains(t, err, "render failed")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRenderResultsChart_NothingFinite(t *testing.T) {
	report := &coremodel.Report{
		Protocol:   "tcp",
		Conditions: []coremodel.ConditionSummary{{Condition: "Normal", Loss: math.NaN(), Overhead: math.NaN()}},
	}
	err := RenderResultsChart(&bytes.Buffer{}, report, 1, 800, 300)
	assert.ErrorIs(t, err, ErrNothingToPlot)
}

func TestChartWriter_SkipsUnplottable(t *testing.T) {
	root := t.TempDir()
	batch := &coremodel.Batch{
		CreatedAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		Reports: []*coremodel.Report{{
			Protocol:   "tcp",
			Conditions: []coremodel.ConditionSummary{{Condition: "Normal", Loss: math.NaN(), Overhead: math.NaN()}},
		}},
	}
	w := NewChartWriter(config.ChartConfig{RootPath: root, Width: 800, Height: 300})
	require.NoError(t, w.Write(batch))

	entries, err := os.ReadDir(filepath.Join(root, "2024-05-01_12-30-00"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "trialstats.db")
	w, err := NewSQLiteWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleBatch()))
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM condition_summaries`).Scan(&count))
	assert.Equal(t, 3, count)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bandwidth_points`).Scan(&count))
	assert.Equal(t, 5, count)

	var loss sql.NullFloat64
	require.NoError(t, db.QueryRow(`SELECT loss FROM condition_summaries WHERE protocol = 'tcp' AND condition = 'Horrible'`).Scan(&loss))
	assert.True(t, loss.Valid)
	assert.InDelta(t, 0.25, loss.Float64, 1e-12)

	require.NoError(t, db.QueryRow(`SELECT loss FROM condition_summaries WHERE protocol = 'lrdp'`).Scan(&loss))
	assert.False(t, loss.Valid)
}

func TestNewSQLiteWriter_NoPath(t *testing.T) {
	_, err := NewSQLiteWriter("")
	assert.Error(t, err)
}

func TestClickHouseRows(t *testing.T) {
	batch := sampleBatch()

	rows := conditionRows(batch)
	require.Len(t, rows, 3)
	assert.Equal(t, []interface{}{
		batch.CreatedAt, "cq1batch", "tcp", "Horrible", uint16(1), uint32(3), 0.25, 0.45, 80.0, 2500.0,
	}, rows[1])
	assert.True(t, math.IsNaN(rows[2][6].(float64)))

	points := bandwidthRows(batch)
	require.Len(t, points, 5)
	assert.Equal(t, "lrdp", points[4][2])
	assert.Equal(t, uint32(1), points[4][3])
	assert.Equal(t, 15.0, points[4][6])
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "12.50%", percent(0.125))
	assert.True(t, strings.HasSuffix(percent(math.NaN()), "%"))
}
