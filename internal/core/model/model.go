package model

import "time"

// Role identifies which endpoint of a trial produced a counter log.
type Role int

const (
	// RoleProducer is the endpoint originating payload data.
	RoleProducer Role = iota
	// RoleConsumer is the endpoint receiving payload data.
	RoleConsumer
)

func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleConsumer:
		return "consumer"
	default:
		return "unknown"
	}
}

// Snapshot holds the cumulative byte counters of one network interface at one instant.
// The counters are never reset between entries of the same log.
type Snapshot struct {
	RxBytes int64
	TxBytes int64
}

// ProducerEntry is one sample of a producer log.
type ProducerEntry struct {
	Timestamp int64
	Snapshot
	// PacketsSent is the number of payload packets handed to the transport so far.
	PacketsSent int64
	// TotalSentBytes is the number of payload bytes handed to the transport so far.
	TotalSentBytes int64
}

// ConsumerEntry is one sample of a consumer log.
type ConsumerEntry struct {
	Timestamp int64
	Snapshot
	// PacketsReceived is the number of payload packets delivered to the application so far.
	PacketsReceived int64
	// TotalReceivedBytes is the number of payload bytes delivered to the application so far.
	TotalReceivedBytes int64
}

// Counters returns the interface counters of the entry.
func (e ProducerEntry) Counters() Snapshot { return e.Snapshot }

// Counters returns the interface counters of the entry.
func (e ConsumerEntry) Counters() Snapshot { return e.Snapshot }

// ConditionSummary is the averaged result of all runs recorded under one network condition.
type ConditionSummary struct {
	Condition string
	Runs      int
	// Loss is the mean fraction of payload bytes that never reached the consumer.
	Loss float64
	// Overhead is the mean fraction of bidirectional traffic that was not payload.
	Overhead float64
	// OverheadPerPacket is the mean consumer overhead per received packet.
	OverheadPerPacket float64
	// LostPayloadBytes is the mean number of payload bytes lost per run.
	LostPayloadBytes float64
}

// ReceivedRatio is the mean fraction of payload bytes that reached the consumer.
func (s ConditionSummary) ReceivedRatio() float64 {
	return 1 - s.Loss
}

// BandwidthSeries is the index-aligned cumulative transmit curve of a set of runs.
// Each point is relative to the first sample of the run it was taken from.
type BandwidthSeries struct {
	ConsumerTX []float64
	ProducerTX []float64
	Combined   []float64
}

// Len returns the number of points in the series.
func (b BandwidthSeries) Len() int {
	return len(b.Combined)
}

// Report is the full analysis result for one protocol.
type Report struct {
	Protocol   string
	Conditions []ConditionSummary
	// BandwidthConditions lists the conditions whose runs fed Bandwidth.
	BandwidthConditions []string
	Bandwidth           BandwidthSeries
}

// Batch groups the reports produced by one analysis invocation.
type Batch struct {
	ID        string
	CreatedAt time.Time
	Reports   []*Report
}

// Report returns the report for the given protocol, or nil if the batch has none.
func (b *Batch) Report(protocol string) *Report {
	if b == nil {
		return nil
	}
	for _, r := range b.Reports {
		if r.Protocol == protocol {
			return r
		}
	}
	return nil
}

// Protocols returns the protocol names in batch order.
func (b *Batch) Protocols() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.Reports))
	for _, r := range b.Reports {
		names = append(names, r.Protocol)
	}
	return names
}
