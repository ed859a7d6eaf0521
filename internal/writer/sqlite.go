package writer

import (
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/logger"
	"TrialStats/internal/model"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS condition_summaries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT,
    created_at INTEGER,
    protocol TEXT,
    condition TEXT,
    position INTEGER,
    runs INTEGER,
    loss REAL,
    overhead REAL,
    overhead_per_packet REAL,
    lost_payload_bytes REAL
);
CREATE TABLE IF NOT EXISTS bandwidth_points (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT,
    protocol TEXT,
    idx INTEGER,
    consumer_tx REAL,
    producer_tx REAL,
    combined REAL
);
`

// SQLiteWriter appends each batch to a local SQLite database.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) the database at path and ensures the schema exists.
func NewSQLiteWriter(path string) (model.Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite writer needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

func (w *SQLiteWriter) Name() string { return "sqlite" }

func (w *SQLiteWriter) Close() error { return w.db.Close() }

// Write inserts every condition summary and bandwidth point of the batch in one transaction.
// Non-finite values are stored as NULL.
func (w *SQLiteWriter) Write(batch *coremodel.Batch) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	summaryStmt, err := tx.Prepare(`
        INSERT INTO condition_summaries (
            batch_id, created_at, protocol, condition, position, runs,
            loss, overhead, overhead_per_packet, lost_payload_bytes
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare summary insert: %w", err)
	}
	defer summaryStmt.Close()

	pointStmt, err := tx.Prepare(`
        INSERT INTO bandwidth_points (
            batch_id, protocol, idx, consumer_tx, producer_tx, combined
        ) VALUES (?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare bandwidth insert: %w", err)
	}
	defer pointStmt.Close()

	rows := 0
	for _, r := range batch.Reports {
		for i, s := range r.Conditions {
			_, err = summaryStmt.Exec(
				batch.ID, batch.CreatedAt.Unix(), r.Protocol, s.Condition, i, s.Runs,
				nullable(s.Loss), nullable(s.Overhead), nullable(s.OverheadPerPacket), nullable(s.LostPayloadBytes),
			)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to insert condition summary: %w", err)
			}
			rows++
		}
		bw := r.Bandwidth
		for i := 0; i < bw.Len(); i++ {
			_, err = pointStmt.Exec(
				batch.ID, r.Protocol, i,
				nullable(bw.ConsumerTX[i]), nullable(bw.ProducerTX[i]), nullable(bw.Combined[i]),
			)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to insert bandwidth point: %w", err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sqlite transaction: %w", err)
	}
	logger.Infof("Wrote %d rows to SQLite for batch %s", rows, batch.ID)
	return nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
