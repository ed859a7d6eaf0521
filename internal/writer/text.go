package writer

import (
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/logger"
	"TrialStats/internal/model"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
)

// TextWriter writes one human-readable report per protocol.
type TextWriter struct {
	rootPath string
}

// NewTextWriter creates a new text writer rooted at rootPath.
func NewTextWriter(rootPath string) model.Writer {
	return &TextWriter{rootPath: rootPath}
}

func (w *TextWriter) Name() string { return "text" }

func (w *TextWriter) Close() error { return nil }

// Write creates <root>/<timestamp>/<protocol>.txt for every report in the batch.
func (w *TextWriter) Write(batch *coremodel.Batch) error {
	dir := batchDir(w.rootPath, batch)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	for _, report := range batch.Reports {
		filePath := filepath.Join(dir, report.Protocol+".txt")
		file, err := os.Create(filePath)
		if err != nil {
			return fmt.Errorf("failed to create report file '%s': %w", filePath, err)
		}
		err = WriteReportText(file, report)
		file.Close()
		if err != nil {
			return fmt.Errorf("failed to write report file '%s': %w", filePath, err)
		}
	}

	logger.Infof("Successfully wrote %d text reports to %s", len(batch.Reports), dir)
	return nil
}

// WriteReportText renders a report as aligned plain-text tables.
func WriteReportText(out io.Writer, report *coremodel.Report) error {
	fmt.Fprintf(out, "Protocol: %s\n\n", report.Protocol)
	if err := WriteConditionTable(out, report.Conditions); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return WriteBandwidthTable(out, report)
}

// WriteConditionTable renders one row per condition summary.
func WriteConditionTable(out io.Writer, summaries []coremodel.ConditionSummary) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONDITION\tRUNS\tLOSS\tRECEIVED\tOVERHEAD\tOVERHEAD/PKT\tLOST BYTES")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%.2f\t%.0f\n",
			s.Condition, s.Runs, percent(s.Loss), percent(s.ReceivedRatio()), percent(s.Overhead),
			s.OverheadPerPacket, s.LostPayloadBytes)
	}
	return tw.Flush()
}

// WriteBandwidthTable renders the bandwidth series of a report, one row per sample.
func WriteBandwidthTable(out io.Writer, report *coremodel.Report) error {
	bw := report.Bandwidth
	if bw.Len() == 0 {
		_, err := fmt.Fprintln(out, "Bandwidth: no samples")
		return err
	}
	fmt.Fprintf(out, "Bandwidth (%d samples", bw.Len())
	if len(report.BandwidthConditions) > 0 {
		fmt.Fprintf(out, ", conditions %v", report.BandwidthConditions)
	}
	fmt.Fprintln(out, "):")

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "INDEX\tCONSUMER TX\tPRODUCER TX\tCOMBINED\t")
	for i := 0; i < bw.Len(); i++ {
		fmt.Fprintf(tw, "%d\t%.1f\t%.1f\t%.1f\t\n", i, bw.ConsumerTX[i], bw.ProducerTX[i], bw.Combined[i])
	}
	return tw.Flush()
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
