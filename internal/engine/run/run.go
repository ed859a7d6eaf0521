// Package run pairs the producer and consumer logs of one trial.
//
// The metrics assume an asymmetric protocol: the consumer receives payload plus protocol
// overhead, while everything the producer receives is acknowledgment or control traffic.
package run

import (
	"TrialStats/internal/engine/counterfile"
	"fmt"
)

// Run is one trial: a producer log and a consumer log recorded together.
type Run struct {
	producer *counterfile.ProducerFile
	consumer *counterfile.ConsumerFile

	// Window quantities, resolved once at construction.
	txPayload      int64
	rxPayload      int64
	producerRX     int64
	consumerRX     int64
	consumerPerPkt float64
}

// NewRun pairs a producer and a consumer view. Both must hold at least one entry.
func NewRun(producer *counterfile.ProducerFile, consumer *counterfile.ConsumerFile) (*Run, error) {
	r := &Run{producer: producer, consumer: consumer}

	var err error
	if r.txPayload, err = producer.TxPayloadBytes(); err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	if r.producerRX, err = producer.TotalRXBytes(); err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	if r.rxPayload, err = consumer.RxPayloadBytes(); err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if r.consumerRX, err = consumer.TotalRXBytes(); err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if r.consumerPerPkt, err = consumer.OverheadPerPacket(); err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	return r, nil
}

// Producer returns the producer side of the run.
func (r *Run) Producer() *counterfile.ProducerFile { return r.producer }

// Consumer returns the consumer side of the run.
func (r *Run) Consumer() *counterfile.ConsumerFile { return r.consumer }

// LostPayloadBytes is the number of payload bytes sent but never delivered.
func (r *Run) LostPayloadBytes() int64 {
	return r.txPayload - r.rxPayload
}

// PayloadLoss is the fraction of sent payload bytes that never reached the consumer.
// A run that sent no payload yields NaN or ±Inf.
func (r *Run) PayloadLoss() float64 {
	return float64(r.LostPayloadBytes()) / float64(r.txPayload)
}

// OverheadBytes is the non-payload traffic in both directions. Everything the producer
// received counts as overhead.
func (r *Run) OverheadBytes() int64 {
	consumerOverhead := r.consumerRX - r.rxPayload
	return consumerOverhead + r.producerRX
}

// Overhead is OverheadBytes as a fraction of all bytes received by both endpoints.
func (r *Run) Overhead() float64 {
	return float64(r.OverheadBytes()) / float64(r.consumerRX+r.producerRX)
}

// OverheadPerPacket is the consumer's overhead per received payload packet.
func (r *Run) OverheadPerPacket() float64 {
	return r.consumerPerPkt
}

// Group is a labelled set of runs repeated under the same network condition.
type Group struct {
	Condition string
	Runs      []*Run
}
