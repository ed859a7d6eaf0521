package writer

import (
	"TrialStats/internal/config"
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/logger"
	"TrialStats/internal/model"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNothingToPlot is returned when every point of a chart is non-finite.
var ErrNothingToPlot = errors.New("no finite points to plot")

var palette = []string{"1838ed", "ed7809", "2ca02c", "d62728", "9467bd", "8c564b"}

// ChartWriter renders PNG charts of each batch.
type ChartWriter struct {
	rootPath      string
	width, height int
}

// NewChartWriter creates a new chart writer.
func NewChartWriter(cfg config.ChartConfig) model.Writer {
	return &ChartWriter{rootPath: cfg.RootPath, width: cfg.Width, height: cfg.Height}
}

func (w *ChartWriter) Name() string { return "chart" }

func (w *ChartWriter) Close() error { return nil }

// Write renders <protocol>-graph.png for each report and one bandwidth-graph.png
// comparing all protocols. Charts without any finite point are skipped.
func (w *ChartWriter) Write(batch *coremodel.Batch) error {
	dir := batchDir(w.rootPath, batch)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}

	var errs []error
	for i, report := range batch.Reports {
		err := w.renderFile(filepath.Join(dir, report.Protocol+"-graph.png"), func(out io.Writer) error {
			return RenderResultsChart(out, report, i+1, w.width, w.height)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(batch.Reports) > 0 {
		err := w.renderFile(filepath.Join(dir, "bandwidth-graph.png"), func(out io.Writer) error {
			return RenderBandwidthChart(out, batch.Reports, w.width, w.height)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *ChartWriter) renderFile(filePath string, render func(io.Writer) error) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create chart file '%s': %w", filePath, err)
	}
	err = render(file)
	file.Close()

	if err != nil {
		if rmErr := os.Remove(filePath); rmErr != nil {
			logger.Warningf("Could not remove chart %s: %v", filePath, rmErr)
		}
	}
	if errors.Is(err, ErrNothingToPlot) {
		logger.Warningf("Skipping chart %s: %v", filePath, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to render chart '%s': %w", filePath, err)
	}
	logger.Infof("Chart written to %s", filePath)
	return nil
}

// RenderResultsChart plots overhead and received payload ratio per condition, in percent.
func RenderResultsChart(out io.Writer, report *coremodel.Report, figure, width, height int) error {
	n := len(report.Conditions)
	xs := make([]float64, n)
	overhead := make([]float64, n)
	received := make([]float64, n)
	// go-chart takes the x range from the ticks, so unlabeled bounds keep it
	// non-empty when there is a single condition.
	ticks := []chart.Tick{{Value: -0.5}}
	for i, s := range report.Conditions {
		xs[i] = float64(i)
		overhead[i] = s.Overhead * 100
		received[i] = s.ReceivedRatio() * 100
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: s.Condition})
	}
	ticks = append(ticks, chart.Tick{Value: float64(n) - 0.5})

	series := compact(
		lineSeries("Overhead", xs, overhead, "f05316", 3),
		lineSeries("Payload bytes received", xs, received, "1838ed", 3),
	)
	if len(series) == 0 {
		return ErrNothingToPlot
	}

	c := chart.Chart{
		Title:      fmt.Sprintf("Figure %d: %s results.", figure, strings.ToUpper(report.Protocol)),
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: -0.5, Max: float64(n) - 0.5},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  "%",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			Ticks: []chart.Tick{{Value: 0, Label: "0%"}, {Value: 25, Label: "25%"}, {Value: 50, Label: "50%"}, {Value: 75, Label: "75%"}, {Value: 100, Label: "100%"}},
		},
		Series: series,
	}
	c.Elements = []chart.Renderable{chart.Legend(&c)}
	return c.Render(chart.PNG, out)
}

// RenderBandwidthChart plots the combined bandwidth of each report, in KB.
func RenderBandwidthChart(out io.Writer, reports []*coremodel.Report, width, height int) error {
	var series []chart.Series
	maxX, maxY := 1.0, 0.0
	for i, r := range reports {
		bw := r.Bandwidth.Combined
		xs := make([]float64, len(bw))
		ys := make([]float64, len(bw))
		for j, v := range bw {
			xs[j] = float64(j)
			ys[j] = v / 1024
		}
		s := lineSeries(strings.ToUpper(r.Protocol)+" bandwidth", xs, ys, palette[i%len(palette)], 0)
		if len(s.XValues) == 0 {
			continue
		}
		for j, y := range s.YValues {
			maxY = math.Max(maxY, y)
			maxX = math.Max(maxX, s.XValues[j])
		}
		series = append(series, s)
	}
	if len(series) == 0 {
		return ErrNothingToPlot
	}
	if maxY <= 0 {
		maxY = 1
	}

	c := chart.Chart{
		Title:      "Cumulative bandwidth",
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  "sample",
			Range: &chart.ContinuousRange{Min: 0, Max: maxX},
		},
		YAxis: chart.YAxis{
			Name:  "KB",
			Range: &chart.ContinuousRange{Min: 0, Max: maxY * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1fKB", f)
				}
				return ""
			},
		},
		Series: series,
	}
	c.Elements = []chart.Renderable{chart.Legend(&c)}
	return c.Render(chart.PNG, out)
}

// lineSeries drops non-finite points. The result may be empty. A lone point is drawn
// as a dot since it has no segment to stroke.
func lineSeries(name string, xs, ys []float64, hex string, dot float64) chart.ContinuousSeries {
	s := chart.ContinuousSeries{
		Name: name,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex(hex),
			StrokeWidth: 2,
			DotColor:    drawing.ColorFromHex(hex),
			DotWidth:    dot,
		},
	}
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		s.XValues = append(s.XValues, xs[i])
		s.YValues = append(s.YValues, y)
	}
	if len(s.XValues) == 1 && s.Style.DotWidth == 0 {
		s.Style.DotWidth = 4
	}
	return s
}

func compact(all ...chart.ContinuousSeries) []chart.Series {
	var out []chart.Series
	for _, s := range all {
		if len(s.XValues) > 0 {
			out = append(out, s)
		}
	}
	return out
}
