package probe

import (
	v1 "TrialStats/api/v1"
	"TrialStats/internal/config"
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/logger"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReportHandler processes a report received from a publisher.
type ReportHandler func(batchID string, createdAt time.Time, report *coremodel.Report)

// Subscriber follows the reports published under a subject prefix.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber for <prefix>.*.
func NewSubscriber(cfg config.NATSConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	logger.Infof("Connected to NATS server at %s", cfg.URL)
	return &Subscriber{nc: nc, subject: cfg.SubjectPrefix + ".*"}, nil
}

// Start subscribes and hands every decodable report to handler.
func (s *Subscriber) Start(handler ReportHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		batchID, createdAt, report, err := decodeMessage(msg)
		if err != nil {
			logger.Warningf("Dropping message on '%s': %v", msg.Subject, err)
			return
		}
		handler(batchID, createdAt, report)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", s.subject, err)
	}
	s.sub = sub
	logger.Infof("Subscribed to '%s'. Waiting for reports...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		logger.Info("NATS connection closed.")
	}
}

func decodeMessage(msg *nats.Msg) (string, time.Time, *coremodel.Report, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(msg.Data, &pb); err != nil {
		return "", time.Time{}, nil, fmt.Errorf("failed to unmarshal protobuf: %w", err)
	}
	report, err := v1.ReportFromStruct(&pb)
	if err != nil {
		return "", time.Time{}, nil, err
	}

	var batchID string
	var createdAt time.Time
	if msg.Header != nil {
		batchID = msg.Header.Get(HeaderBatchID)
		createdAt, _ = time.Parse(time.RFC3339, msg.Header.Get(HeaderCreatedAt))
	}
	return batchID, createdAt, report, nil
}
