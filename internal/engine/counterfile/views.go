package counterfile

import (
	"TrialStats/internal/core/model"
)

// ProducerFile is the window over a producer log.
type ProducerFile struct {
	Window[model.ProducerEntry]
}

// NewProducerFile builds a producer view over a copy of entries.
func NewProducerFile(entries []model.ProducerEntry) *ProducerFile {
	return &ProducerFile{Window: NewWindow(entries)}
}

// TxPayloadBytes is the number of payload bytes sent in the window.
func (f *ProducerFile) TxPayloadBytes() (int64, error) {
	return delta(f.Window, func(e model.ProducerEntry) int64 { return e.TotalSentBytes })
}

// NumPackets is the number of payload packets sent in the window.
func (f *ProducerFile) NumPackets() (int64, error) {
	return delta(f.Window, func(e model.ProducerEntry) int64 { return e.PacketsSent })
}

// ConsumerFile is the window over a consumer log.
type ConsumerFile struct {
	Window[model.ConsumerEntry]
}

// NewConsumerFile builds a consumer view over a copy of entries.
func NewConsumerFile(entries []model.ConsumerEntry) *ConsumerFile {
	return &ConsumerFile{Window: NewWindow(entries)}
}

// RxPayloadBytes is the number of payload bytes delivered to the consumer in the window.
func (f *ConsumerFile) RxPayloadBytes() (int64, error) {
	return delta(f.Window, func(e model.ConsumerEntry) int64 { return e.TotalReceivedBytes })
}

// NumPackets is the number of payload packets received in the window.
func (f *ConsumerFile) NumPackets() (int64, error) {
	return delta(f.Window, func(e model.ConsumerEntry) int64 { return e.PacketsReceived })
}

// Overhead is the number of received bytes that were not payload.
func (f *ConsumerFile) Overhead() (int64, error) {
	total, err := f.TotalRXBytes()
	if err != nil {
		return 0, err
	}
	payload, err := f.RxPayloadBytes()
	if err != nil {
		return 0, err
	}
	return total - payload, nil
}

// OverheadPerPacket is Overhead divided by NumPackets. Zero packets yield a
// non-finite value rather than an error.
func (f *ConsumerFile) OverheadPerPacket() (float64, error) {
	overhead, err := f.Overhead()
	if err != nil {
		return 0, err
	}
	packets, err := f.NumPackets()
	if err != nil {
		return 0, err
	}
	return float64(overhead) / float64(packets), nil
}
