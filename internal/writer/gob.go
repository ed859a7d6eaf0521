package writer

import (
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SummaryData holds the metadata written next to each gob report.
type SummaryData struct {
	BatchID         string   `json:"batch_id"`
	Protocol        string   `json:"protocol"`
	Conditions      []string `json:"conditions"`
	TotalRuns       int      `json:"total_runs"`
	BandwidthPoints int      `json:"bandwidth_points"`
	Timestamp       string   `json:"timestamp"`
}

// GobWriter snapshots each report to disk in gob format.
type GobWriter struct {
	rootPath string
}

// NewGobWriter creates a new gob snapshot writer.
func NewGobWriter(rootPath string) model.Writer {
	return &GobWriter{rootPath: rootPath}
}

func (w *GobWriter) Name() string { return "gob" }

func (w *GobWriter) Close() error { return nil }

// Write stores every report as <root>/<timestamp>/<protocol>/report.dat with a summary.json.
func (w *GobWriter) Write(batch *coremodel.Batch) error {
	dir := batchDir(w.rootPath, batch)

	for _, report := range batch.Reports {
		// 1. Create the protocol directory
		protoDir := filepath.Join(dir, report.Protocol)
		if err := os.MkdirAll(protoDir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}

		// 2. Encode the report
		filePath := filepath.Join(protoDir, "report.dat")
		if err := writeGob(filePath, report); err != nil {
			return err
		}

		// 3. Write the summary file
		summary := SummaryData{
			BatchID:         batch.ID,
			Protocol:        report.Protocol,
			BandwidthPoints: report.Bandwidth.Len(),
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
		}
		for _, s := range report.Conditions {
			summary.Conditions = append(summary.Conditions, s.Condition)
			summary.TotalRuns += s.Runs
		}
		if err := writeSummary(filepath.Join(protoDir, "summary.json"), summary); err != nil {
			return err
		}
	}
	return nil
}

func writeGob(filePath string, report *coremodel.Report) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(report); err != nil {
		return fmt.Errorf("failed to encode report to gob for file '%s': %w", filePath, err)
	}
	return nil
}

func writeSummary(filePath string, summary SummaryData) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return nil
}

// ReadReport decodes a report written by GobWriter.
func ReadReport(filePath string) (*coremodel.Report, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	var report coremodel.Report
	if err := gob.NewDecoder(file).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report from '%s': %w", filePath, err)
	}
	return &report, nil
}
