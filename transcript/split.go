package transcript

import (
	"math"
	"sort"
	"strings"
)

// Kind tells word segments from silence.
type Kind string

const (
	KindWord    Kind = "word"
	KindSilence Kind = "silence"
)

// Epsilon is the smallest gap that gets its own silence segment.
const Epsilon = 1e-6

// OutputSegment is one highlightable unit of the final timeline.
type OutputSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Type  Kind    `json:"type"`
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func silence(start, end float64) OutputSegment {
	return OutputSegment{Start: round3(start), End: round3(end), Type: KindSilence}
}

// Split expands normalized segments into a gap-free word/silence timeline.
// Words of a segment share its interval evenly in textual order. Segments
// that overlap what was already emitted are clipped to start where the
// previous one ended; one lying wholly inside emitted time keeps its words
// as zero-length entries at that point, so no text is lost. With a known
// total duration the timeline is padded with silence up to it.
func Split(segments []Segment, total *float64) []OutputSegment {
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	out := make([]OutputSegment, 0, len(ordered))
	lastEnd := 0.0
	for _, seg := range ordered {
		start, end := seg.Start, seg.End
		if start > lastEnd+Epsilon {
			out = append(out, silence(lastEnd, start))
		} else {
			start = lastEnd
		}
		end = math.Max(end, start)

		words := strings.Fields(seg.Text)
		switch len(words) {
		case 0:
			out = append(out, silence(start, end))
		case 1:
			out = append(out, OutputSegment{Start: round3(start), End: round3(end), Text: words[0], Type: KindWord})
		default:
			step := (end - start) / float64(len(words))
			for i, w := range words {
				wordEnd := start + float64(i+1)*step
				if i == len(words)-1 {
					wordEnd = end
				}
				out = append(out, OutputSegment{
					Start: round3(start + float64(i)*step),
					End:   round3(wordEnd),
					Text:  w,
					Type:  KindWord,
				})
			}
		}
		lastEnd = math.Max(lastEnd, end)
	}

	if total != nil && *total > lastEnd+Epsilon {
		out = append(out, silence(lastEnd, *total))
	}
	return out
}

// Offset returns the start of the first segment carrying text, or 0.
func Offset(segments []OutputSegment) float64 {
	for _, s := range segments {
		if s.Text != "" {
			return s.Start
		}
	}
	return 0
}
