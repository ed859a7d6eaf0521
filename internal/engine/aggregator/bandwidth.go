package aggregator

import (
	"TrialStats/internal/core/model"
	"TrialStats/internal/engine/counterfile"
	"TrialStats/internal/engine/run"
)

// Bandwidth builds the cumulative transmit curve of a set of same-protocol runs.
//
// Runs are aligned by sample index, not by timestamp. Every point is taken relative to
// the first sample of its own run, and runs that are shorter than an index stop
// contributing there. The series is as long as the longest consumer log.
func Bandwidth(runs []*run.Run) model.BandwidthSeries {
	consumers := make([]counterfile.Window[model.ConsumerEntry], 0, len(runs))
	producers := make([]counterfile.Window[model.ProducerEntry], 0, len(runs))
	length := 0
	for _, r := range runs {
		c := r.Consumer().Window
		consumers = append(consumers, c)
		producers = append(producers, r.Producer().Window)
		if c.Len() > length {
			length = c.Len()
		}
	}

	series := model.BandwidthSeries{
		ConsumerTX: relativeTXMeans(consumers, length),
		ProducerTX: relativeTXMeans(producers, length),
		Combined:   make([]float64, length),
	}
	for i := range series.Combined {
		series.Combined[i] = series.ConsumerTX[i] + series.ProducerTX[i]
	}
	return series
}

// relativeTXMeans returns, for every index below length, the mean of txBytes[i]-txBytes[0]
// over the windows that have an entry at i. An index no window reaches is NaN.
func relativeTXMeans[E counterfile.Entry](windows []counterfile.Window[E], length int) []float64 {
	means := make([]float64, length)
	for i := range means {
		var sum float64
		var contributors int
		for _, w := range windows {
			entry, ok := w.At(i)
			if !ok {
				continue
			}
			base, _ := w.At(0)
			sum += float64(entry.Counters().TxBytes - base.Counters().TxBytes)
			contributors++
		}
		means[i] = sum / float64(contributors)
	}
	return means
}
