package ocr

import (
	"fmt"
	"image"
	"io"
)

// Segment is one recognized text line: the decoded string, the
// recognizer's confidence, and the region it was detected in.
type Segment struct {
	Text  string          `json:"text"`
	Score float32         `json:"score"`
	Box   image.Rectangle `json:"box"`
}

// CharCount returns the number of characters in the segment text,
// counted as runes and excluding escape markers.
func (s Segment) CharCount() int {
	count := 0
	for _, r := range s.Text {
		if r != '\\' {
			count++
		}
	}
	return count
}

// Result is the structured output of one OCR call on one image. A
// single image may decompose into multiple results (e.g. multi-page
// inputs); each carries its own ordered segment list.
type Result struct {
	Source   string    `json:"source"`
	Page     int       `json:"page"`
	Segments []Segment `json:"segments"`
}

// TotalChars sums CharCount over every segment.
func (r Result) TotalChars() int {
	total := 0
	for _, seg := range r.Segments {
		total += seg.CharCount()
	}
	return total
}

// Render writes a plain-text representation of the result for operator
// inspection.
func (r Result) Render(w io.Writer) {
	fmt.Fprintf(w, "Result for %s (page %d), %d segment(s):\n", r.Source, r.Page, len(r.Segments))
	for i, seg := range r.Segments {
		fmt.Fprintf(w, "  [%d] %q (score=%.4f, box=%v)\n", i+1, seg.Text, seg.Score, seg.Box)
	}
}
