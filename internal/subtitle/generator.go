package subtitle

import (
	"math"
	"strings"
)

// span is a half-open range of reference word indices
type span struct {
	lo, hi int
}

// Reconcile builds one entry per segment: timing comes from the segment and
// wording from the reference text, redistributed across segments in
// proportion to each segment's transcribed word count.
//
// Every segment receives at least one reference word while words remain;
// with fewer reference words than segments the trailing segments get empty
// text. An empty reference keeps the transcribed text. Zero segments yield
// an empty track.
func Reconcile(segments []Segment, reference string) []Entry {
	entries := make([]Entry, 0, len(segments))
	if len(segments) == 0 {
		return entries
	}

	words := strings.Fields(reference)
	spans := distributeWords(segmentWeights(segments), len(words))

	for i, seg := range segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if len(words) > 0 {
			text = strings.Join(words[spans[i].lo:spans[i].hi], " ")
		}
		entries = append(entries, newEntry(i+1, seg.Start, seg.End, text))
	}

	return entries
}

// FromSegments builds entries from the raw transcription without correction
func FromSegments(segments []Segment) []Entry {
	return Reconcile(segments, "")
}

func segmentWeights(segments []Segment) []int {
	weights := make([]int, len(segments))
	for i, seg := range segments {
		weights[i] = len(strings.Fields(seg.Text))
	}
	return weights
}

// distributeWords splits total words into len(weights) contiguous spans.
// Cumulative boundaries follow round(total*cum/sum), clamped so each span
// is non-empty and enough words remain for the spans after it.
func distributeWords(weights []int, total int) []span {
	n := len(weights)
	spans := make([]span, n)

	if total < n {
		for i := range spans {
			if i < total {
				spans[i] = span{lo: i, hi: i + 1}
			} else {
				spans[i] = span{lo: total, hi: total}
			}
		}
		return spans
	}

	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		for i := range weights {
			weights[i] = 1
		}
		sum = n
	}

	prev, cum := 0, 0
	for i, w := range weights {
		cum += w
		b := int(math.Round(float64(total) * float64(cum) / float64(sum)))
		if b < prev+1 {
			b = prev + 1
		}
		if limit := total - (n - 1 - i); b > limit {
			b = limit
		}
		spans[i] = span{lo: prev, hi: b}
		prev = b
	}

	return spans
}

func newEntry(index int, start, end float64, text string) Entry {
	start = clampSeconds(start)
	end = clampSeconds(end)
	if end < start {
		end = start
	}

	// Inputs are clamped above, so formatting cannot fail
	startTS, _ := FormatTimestamp(start)
	endTS, _ := FormatTimestamp(end)

	return Entry{
		Index:        index,
		Start:        startTS,
		End:          endTS,
		Text:         text,
		StartSeconds: start,
		EndSeconds:   end,
	}
}

func clampSeconds(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
