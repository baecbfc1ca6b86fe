package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Encoding is the timestamp representation used by a whole whisper artifact.
type Encoding int

const (
	EncodingTimestamps Encoding = iota
	EncodingOffsets
	EncodingTFields
)

func (e Encoding) String() string {
	switch e {
	case EncodingOffsets:
		return "offsets"
	case EncodingTFields:
		return "t-fields"
	default:
		return "timestamps"
	}
}

// ClockSpan holds the formatted "timestamps" pair whisper prints next to
// numeric timings.
type ClockSpan struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (c *ClockSpan) seconds() (start, end float64, ok bool) {
	if c == nil || c.From == "" || c.To == "" {
		return 0, 0, false
	}
	start, err := ParseClock(c.From)
	if err != nil {
		return 0, 0, false
	}
	end, err = ParseClock(c.To)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// RawSegment is one record of a whisper artifact. The concrete type is
// decided once per document by ParseDocument.
type RawSegment interface {
	text() string
}

// OffsetsSegment carries offsets.from/offsets.to in milliseconds.
type OffsetsSegment struct {
	From  *float64
	To    *float64
	Clock *ClockSpan
	Text  string
}

// TFieldsSegment carries t0/t1 in a unit only known after scale inference.
type TFieldsSegment struct {
	T0    *float64
	T1    *float64
	Clock *ClockSpan
	Text  string
}

// TimestampSegment carries only the formatted clock strings.
type TimestampSegment struct {
	Clock *ClockSpan
	Text  string
}

func (s OffsetsSegment) text() string   { return s.Text }
func (s TFieldsSegment) text() string   { return s.Text }
func (s TimestampSegment) text() string { return s.Text }

// Document is a parsed whisper artifact. Every element of Segments has the
// variant type matching Encoding.
type Document struct {
	Encoding Encoding
	Segments []RawSegment
}

type artifact struct {
	Transcription []json.RawMessage `json:"transcription"`
	Segments      []json.RawMessage `json:"segments"`
	Result        []json.RawMessage `json:"result"`
}

// ParseDocument decodes a whisper JSON artifact. The record list is taken
// from "transcription", then "segments", then "result", whichever is first
// non-empty. Records that are not JSON objects are ignored.
func ParseDocument(data []byte) (Document, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Document{}, fmt.Errorf("decode transcription artifact: %w", err)
	}

	list := a.Transcription
	if len(list) == 0 {
		list = a.Segments
	}
	if len(list) == 0 {
		list = a.Result
	}

	records := make([]map[string]json.RawMessage, 0, len(list))
	for _, raw := range list {
		var rec map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
			continue
		}
		records = append(records, rec)
	}

	doc := Document{Encoding: detectEncoding(records)}
	doc.Segments = make([]RawSegment, 0, len(records))
	for _, rec := range records {
		doc.Segments = append(doc.Segments, decodeSegment(doc.Encoding, rec))
	}
	return doc, nil
}

func detectEncoding(records []map[string]json.RawMessage) Encoding {
	tFields := false
	for _, rec := range records {
		if _, ok := rec["offsets"]; ok {
			return EncodingOffsets
		}
		_, t0 := rec["t0"]
		_, t1 := rec["t1"]
		if t0 || t1 {
			tFields = true
		}
	}
	if tFields {
		return EncodingTFields
	}
	return EncodingTimestamps
}

func decodeSegment(enc Encoding, rec map[string]json.RawMessage) RawSegment {
	var text string
	decodeField(rec, "text", &text)
	text = strings.TrimSpace(text)

	var clock *ClockSpan
	decodeField(rec, "timestamps", &clock)

	switch enc {
	case EncodingOffsets:
		var offsets struct {
			From *float64 `json:"from"`
			To   *float64 `json:"to"`
		}
		decodeField(rec, "offsets", &offsets)
		return OffsetsSegment{From: offsets.From, To: offsets.To, Clock: clock, Text: text}
	case EncodingTFields:
		var t0, t1 *float64
		decodeField(rec, "t0", &t0)
		decodeField(rec, "t1", &t1)
		return TFieldsSegment{T0: t0, T1: t1, Clock: clock, Text: text}
	default:
		return TimestampSegment{Clock: clock, Text: text}
	}
}

// decodeField leaves dst untouched when the key is absent or malformed.
func decodeField(rec map[string]json.RawMessage, key string, dst interface{}) {
	raw, ok := rec[key]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, dst)
}
