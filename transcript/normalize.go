package transcript

import "math"

// Segment is a whisper record converted to seconds. An empty Text marks a
// silence-only record.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

const (
	DenomMilliseconds = 1000.0
	DenomCentiseconds = 100.0
	DenomSeconds      = 1.0
)

var candidateDenominators = []float64{DenomMilliseconds, DenomCentiseconds, DenomSeconds}

// InferDenominator picks the unit of t0/t1 values for a whole document.
// With a known total duration the candidate whose largest t1 lands closest
// to it wins, and candidates overshooting 1.5x the duration have their
// distance multiplied by 10. Without a duration milliseconds are assumed.
func InferDenominator(segments []RawSegment, total *float64) float64 {
	if total == nil || *total <= 0 {
		return DenomMilliseconds
	}

	best := DenomMilliseconds
	bestDiff := math.Inf(1)
	for _, denom := range candidateDenominators {
		maxSec := 0.0
		for _, s := range segments {
			tf, ok := s.(TFieldsSegment)
			if !ok || tf.T0 == nil || tf.T1 == nil {
				continue
			}
			maxSec = math.Max(maxSec, *tf.T1/denom)
		}

		diff := math.Abs(*total - maxSec)
		if maxSec > *total*1.5 {
			diff *= 10
		}
		if diff < bestDiff {
			bestDiff = diff
			best = denom
		}
	}
	return best
}

// Normalize converts every record of doc to seconds using one scale for the
// whole document. Records whose primary timing is missing fall back to their
// clock strings; records with neither, or with end before start, are dropped.
// The returned denominator is the divisor applied to numeric timings.
func Normalize(doc Document, total *float64) ([]Segment, float64) {
	denom := DenomMilliseconds
	if doc.Encoding == EncodingTFields {
		denom = InferDenominator(doc.Segments, total)
	}

	out := make([]Segment, 0, len(doc.Segments))
	for _, raw := range doc.Segments {
		start, end, ok := bounds(raw, denom)
		if !ok || end < start {
			continue
		}
		out = append(out, Segment{Start: start, End: end, Text: raw.text()})
	}
	return out, denom
}

func bounds(raw RawSegment, denom float64) (float64, float64, bool) {
	switch s := raw.(type) {
	case OffsetsSegment:
		if s.From != nil && s.To != nil {
			return *s.From / DenomMilliseconds, *s.To / DenomMilliseconds, true
		}
		return s.Clock.seconds()
	case TFieldsSegment:
		if s.T0 != nil && s.T1 != nil {
			return *s.T0 / denom, *s.T1 / denom, true
		}
		return s.Clock.seconds()
	case TimestampSegment:
		return s.Clock.seconds()
	}
	return 0, 0, false
}
