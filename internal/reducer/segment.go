package reducer

import (
	"regexp"
	"strings"
)

// Segmentation names how the text was split before keyword filtering.
type Segmentation string

const (
	SegmentParagraphs Segmentation = "paragraphs"
	SegmentSentences  Segmentation = "sentences"
	SegmentLines      Segmentation = "lines"
	SegmentWhole      Segmentation = "whole"
)

// fallbackSegments is how many leading segments are kept when no keyword matches.
const fallbackSegments = 3

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// segment splits text into paragraphs, else sentences, else lines, else one segment.
func segment(text string) ([]string, Segmentation) {
	var (
		parts []string
		mode  Segmentation
	)
	switch {
	case strings.Contains(text, "\n\n"):
		parts, mode = paragraphSplit.Split(text, -1), SegmentParagraphs
	case strings.Contains(text, ". "):
		parts, mode = strings.Split(text, ". "), SegmentSentences
		for i := 0; i < len(parts)-1; i++ {
			parts[i] += "."
		}
	case strings.Contains(text, "\n"):
		parts, mode = strings.Split(text, "\n"), SegmentLines
	default:
		parts, mode = []string{text}, SegmentWhole
	}

	segments := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, p)
		}
	}
	return segments, mode
}

// filterSegments keeps segments containing any keyword, case-insensitively.
// Keywords must already be lower case. When nothing matches, the first few
// segments are returned and fallback is true.
func filterSegments(segments, keywords []string) (kept []string, fallback bool) {
	for _, seg := range segments {
		lower := strings.ToLower(seg)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				kept = append(kept, seg)
				break
			}
		}
	}
	if len(kept) > 0 {
		return kept, false
	}
	if len(segments) > fallbackSegments {
		return segments[:fallbackSegments], true
	}
	return segments, true
}

func joinSegments(segments []string, mode Segmentation) string {
	if mode == SegmentSentences {
		return strings.Join(segments, " ")
	}
	return strings.Join(segments, "\n\n")
}
