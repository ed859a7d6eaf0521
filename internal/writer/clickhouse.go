package writer

import (
	"TrialStats/internal/config"
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/logger"
	"TrialStats/internal/model"
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createConditionTable = `
CREATE TABLE IF NOT EXISTS trial_condition_metrics (
    Timestamp         DateTime,
    BatchID           String,
    Protocol          String,
    Condition         String,
    Position          UInt16,
    Runs              UInt32,
    Loss              Float64,
    Overhead          Float64,
    OverheadPerPacket Float64,
    LostPayloadBytes  Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Protocol, Timestamp);
`

const createBandwidthTable = `
CREATE TABLE IF NOT EXISTS trial_bandwidth (
    Timestamp  DateTime,
    BatchID    String,
    Protocol   String,
    Idx        UInt32,
    ConsumerTX Float64,
    ProducerTX Float64,
    Combined   Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Protocol, Timestamp, Idx);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects to ClickHouse and ensures both tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createConditionTable, createBandwidthTable} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	logger.Info("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (w *ClickHouseWriter) Name() string { return "clickhouse" }

func (w *ClickHouseWriter) Close() error { return w.conn.Close() }

// Write inserts the batch into trial_condition_metrics and trial_bandwidth.
// ClickHouse Float64 columns hold NaN and Inf as-is.
func (w *ClickHouseWriter) Write(batch *coremodel.Batch) error {
	if err := w.send("trial_condition_metrics", conditionRows(batch)); err != nil {
		return err
	}
	if err := w.send("trial_bandwidth", bandwidthRows(batch)); err != nil {
		return err
	}
	return nil
}

func (w *ClickHouseWriter) send(table string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil // Nothing to write
	}

	b, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := b.Append(row...); err != nil {
			return fmt.Errorf("failed to append row to %s batch: %w", table, err)
		}
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	logger.Infof("Wrote %d rows to ClickHouse table '%s'", len(rows), table)
	return nil
}

// conditionRows flattens the batch into trial_condition_metrics rows, in column order.
func conditionRows(batch *coremodel.Batch) [][]interface{} {
	var rows [][]interface{}
	for _, r := range batch.Reports {
		for i, s := range r.Conditions {
			rows = append(rows, []interface{}{
				batch.CreatedAt,
				batch.ID,
				r.Protocol,
				s.Condition,
				uint16(i),
				uint32(s.Runs),
				s.Loss,
				s.Overhead,
				s.OverheadPerPacket,
				s.LostPayloadBytes,
			})
		}
	}
	return rows
}

// bandwidthRows flattens the batch into trial_bandwidth rows, in column order.
func bandwidthRows(batch *coremodel.Batch) [][]interface{} {
	var rows [][]interface{}
	for _, r := range batch.Reports {
		bw := r.Bandwidth
		for i := 0; i < bw.Len(); i++ {
			rows = append(rows, []interface{}{
				batch.CreatedAt,
				batch.ID,
				r.Protocol,
				uint32(i),
				bw.ConsumerTX[i],
				bw.ProducerTX[i],
				bw.Combined[i],
			})
		}
	}
	return rows
}
