package reveal

import (
	"strings"
)

// Delimiter separates reveal segments.
const Delimiter = '\n'

// Segment is one non-empty run of text between delimiters. End is the byte
// offset just past the segment in the source text.
type Segment struct {
	Text string
	End  int
}

// Split breaks text into its non-empty delimiter-separated segments, in order.
// Text made only of delimiters yields no segments.
func Split(text string) []Segment {
	var segments []Segment
	start := 0
	for start <= len(text) {
		n := strings.IndexByte(text[start:], Delimiter)
		end := len(text)
		if n >= 0 {
			end = start + n
		}
		if end > start {
			segments = append(segments, Segment{Text: text[start:end], End: end})
		}
		if n < 0 {
			break
		}
		start = end + 1
	}
	return segments
}

// Prefixes returns the values a session delivers for text, in order. The
// last prefix is always text itself.
func Prefixes(text string) []string {
	segments := Split(text)
	out := make([]string, len(segments))
	for i, seg := range segments {
		out[i] = text[:seg.End]
	}
	if len(out) > 0 {
		out[len(out)-1] = text
	}
	return out
}
