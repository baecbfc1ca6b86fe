package transcript

// Result is the composed answer for a finished transcription.
type Result struct {
	Segments      []OutputSegment `json:"segments"`
	Offset        float64         `json:"offset"`
	AudioFile     string          `json:"audio_file"`
	TotalDuration *float64        `json:"total_duration"`

	Encoding    Encoding `json:"-"`
	Denominator float64  `json:"-"`
}

// Build runs the whole pipeline over a whisper JSON artifact. total may be
// nil when the audio duration is unknown.
func Build(artifact []byte, total *float64) (*Result, error) {
	doc, err := ParseDocument(artifact)
	if err != nil {
		return nil, err
	}

	normalized, denom := Normalize(doc, total)
	segments := Split(normalized, total)

	return &Result{
		Segments:      segments,
		Offset:        Offset(segments),
		TotalDuration: total,
		Encoding:      doc.Encoding,
		Denominator:   denom,
	}, nil
}
