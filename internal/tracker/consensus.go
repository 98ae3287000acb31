package tracker

import "sort"

// Median returns the statistical median of the positions: the middle value
// for odd counts, the average of the two central values for even counts.
func Median(positions []float64) float64 {
	sorted := make([]float64, len(positions))
	copy(sorted, positions)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// windowedConsensus is the in-process aggregation result for one train.
// Confirmed is populated only when enough samples cluster tightly.
type windowedConsensus struct {
	confirmed   *Sample
	unconfirmed *Sample
}

// aggregateWindow folds one train's samples, pre-sorted by ascending
// position, into the windowed consensus:
//
//	n=1: that sample, unconfirmed.
//	n=2: average of both, max timestamp, unconfirmed.
//	n=3: average of the two smallest with their max timestamp, unconfirmed.
//	     The largest sample is discounted as a likely outlier.
//	n>3: tightest window of k=floor(0.67n) consecutive samples, earliest
//	     window on ties; its median position and max timestamp, confirmed.
func aggregateWindow(samples []Sample) windowedConsensus {
	switch n := len(samples); {
	case n == 0:
		return windowedConsensus{}
	case n == 1:
		s := samples[0]
		return windowedConsensus{unconfirmed: &s}
	case n == 2:
		return windowedConsensus{unconfirmed: &Sample{
			Position:  (samples[0].Position + samples[1].Position) / 2,
			Timestamp: maxInt64(samples[0].Timestamp, samples[1].Timestamp),
		}}
	case n == 3:
		return windowedConsensus{unconfirmed: &Sample{
			Position:  (samples[0].Position + samples[1].Position) / 2,
			Timestamp: maxInt64(samples[0].Timestamp, samples[1].Timestamp),
		}}
	default:
		k := int(0.67 * float64(n))
		bestStart := 0
		bestSpan := samples[k-1].Position - samples[0].Position
		for i := 1; i+k <= n; i++ {
			span := samples[i+k-1].Position - samples[i].Position
			if span < bestSpan {
				bestSpan = span
				bestStart = i
			}
		}

		window := samples[bestStart : bestStart+k]
		maxTS := window[0].Timestamp
		for _, s := range window[1:] {
			if s.Timestamp > maxTS {
				maxTS = s.Timestamp
			}
		}
		mid := k / 2
		position := window[mid].Position
		if k%2 == 0 {
			position = (window[mid-1].Position + window[mid].Position) / 2
		}
		return windowedConsensus{confirmed: &Sample{Position: position, Timestamp: maxTS}}
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
