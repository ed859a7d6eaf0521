// Package probe publishes finished reports over NATS and follows them on the other side.
package probe

import (
	v1 "TrialStats/api/v1"
	"TrialStats/internal/config"
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/factory"
	"TrialStats/internal/logger"
	"TrialStats/internal/model"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
)

// Message headers carried next to each report.
const (
	HeaderBatchID   = "Trialstats-Batch-Id"
	HeaderCreatedAt = "Trialstats-Created-At"
)

func init() {
	factory.RegisterWriter("nats", func(def config.WriterDef) (model.Writer, error) {
		return NewPublisher(def.NATS)
	})
}

// Publisher is responsible for publishing reports to NATS subjects.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	logger.Infof("Connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

func (p *Publisher) Name() string { return "nats" }

// Write publishes one message per report and flushes the connection.
func (p *Publisher) Write(batch *coremodel.Batch) error {
	msgs, err := buildMessages(p.prefix, batch)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := p.nc.PublishMsg(msg); err != nil {
			return fmt.Errorf("failed to publish to '%s': %w", msg.Subject, err)
		}
	}
	if err := p.nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush nats connection: %w", err)
	}
	logger.Infof("Published %d report(s) under '%s'", len(msgs), p.prefix)
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	logger.Info("NATS connection drained and closed.")
	return nil
}

// buildMessages serializes every report of the batch to protobuf, one message per
// protocol on <prefix>.<protocol>.
func buildMessages(prefix string, batch *coremodel.Batch) ([]*nats.Msg, error) {
	msgs := make([]*nats.Msg, 0, len(batch.Reports))
	for _, r := range batch.Reports {
		data, err := proto.Marshal(v1.ReportToStruct(r))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report for '%s': %w", r.Protocol, err)
		}
		msg := nats.NewMsg(prefix + "." + r.Protocol)
		msg.Data = data
		msg.Header.Set(HeaderBatchID, batch.ID)
		msg.Header.Set(HeaderCreatedAt, batch.CreatedAt.UTC().Format(time.RFC3339))
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
