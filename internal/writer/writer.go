// Package writer holds the built-in result writers and registers them with the factory.
package writer

import (
	"TrialStats/internal/config"
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/factory"
	"TrialStats/internal/model"
	"path/filepath"
)

// TimestampLayout names the per-batch output directories.
const TimestampLayout = "2006-01-02_15-04-05"

func init() {
	factory.RegisterWriter("text", func(def config.WriterDef) (model.Writer, error) {
		return NewTextWriter(def.Text.RootPath), nil
	})
	factory.RegisterWriter("gob", func(def config.WriterDef) (model.Writer, error) {
		return NewGobWriter(def.Gob.RootPath), nil
	})
	factory.RegisterWriter("chart", func(def config.WriterDef) (model.Writer, error) {
		return NewChartWriter(def.Chart), nil
	})
	factory.RegisterWriter("sqlite", func(def config.WriterDef) (model.Writer, error) {
		return NewSQLiteWriter(def.SQLite.Path)
	})
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

func batchDir(root string, b *coremodel.Batch) string {
	return filepath.Join(root, b.CreatedAt.UTC().Format(TimestampLayout))
}
