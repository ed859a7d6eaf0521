package query

import (
	v1 "TrialStats/api/v1"
	"TrialStats/internal/config"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"google.golang.org/protobuf/types/known/structpb"
)

// HistoryPoint is one stored condition summary of a past batch.
type HistoryPoint struct {
	Timestamp time.Time
	BatchID   string
	Condition string
	Runs      uint32
	Loss      float64
	Overhead  float64
}

// Querier defines the interface for querying past analysis results.
type Querier interface {
	History(ctx context.Context, protocol, condition string, limit int) ([]HistoryPoint, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
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

// History returns the stored summaries of a protocol, newest first.
func (q *clickhouseQuerier) History(ctx context.Context, protocol, condition string, limit int) ([]HistoryPoint, error) {
	query, args := buildHistoryQuery(protocol, condition, limit)

	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute history query: %w", err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		if err := rows.Scan(&p.Timestamp, &p.BatchID, &p.Condition, &p.Runs, &p.Loss, &p.Overhead); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// buildHistoryQuery builds the SELECT over trial_condition_metrics. An empty condition
// matches every condition; a non-positive limit means 100.
func buildHistoryQuery(protocol, condition string, limit int) (string, []interface{}) {
	if limit <= 0 {
		limit = 100
	}

	var sb strings.Builder
	sb.WriteString("SELECT Timestamp, BatchID, Condition, Runs, Loss, Overhead FROM trial_condition_metrics")
	sb.WriteString(" WHERE Protocol = ?")
	args := []interface{}{protocol}
	if condition != "" {
		sb.WriteString(" AND Condition = ?")
		args = append(args, condition)
	}
	sb.WriteString(" ORDER BY Timestamp DESC, Position ASC")
	sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	return sb.String(), args
}

func historyToStruct(protocol string, points []HistoryPoint) *structpb.Struct {
	list := &structpb.ListValue{}
	for _, p := range points {
		list.Values = append(list.Values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"timestamp": structpb.NewStringValue(p.Timestamp.UTC().Format(time.RFC3339)),
			"batch_id":  structpb.NewStringValue(p.BatchID),
			"condition": structpb.NewStringValue(p.Condition),
			"runs":      structpb.NewNumberValue(float64(p.Runs)),
			"loss":      v1.Number(p.Loss),
			"overhead":  v1.Number(p.Overhead),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"protocol": structpb.NewStringValue(protocol),
		"points":   structpb.NewListValue(list),
	}}
}
