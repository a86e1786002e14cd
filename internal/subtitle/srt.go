package subtitle

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RenderSRT serializes entries into index / time-range / text blocks
func RenderSRT(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", e.Index, e.Start, e.End, e.Text)
	}
	return b.String()
}

// WriteSRT renders entries to path, overwriting any existing file
func WriteSRT(path string, entries []Entry) error {
	if err := os.WriteFile(path, []byte(RenderSRT(entries)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// ParseSRT reads SRT content back into entries
func ParseSRT(content string) ([]Entry, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	var entries []Entry
	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}

		index, err := strconv.Atoi(strings.TrimPrefix(line, "\ufeff"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid cue index %q", i+1, line)
		}
		if i+1 >= len(lines) {
			return nil, fmt.Errorf("line %d: cue %d has no time range", i+1, index)
		}

		parts := strings.Split(lines[i+1], "-->")
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid time range %q", i+2, lines[i+1])
		}
		start, err := ParseTimestamp(parts[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		end, err := ParseTimestamp(parts[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}

		i += 2
		var text []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			text = append(text, lines[i])
			i++
		}

		entries = append(entries, Entry{
			Index:        index,
			Start:        strings.TrimSpace(parts[0]),
			End:          strings.TrimSpace(parts[1]),
			Text:         strings.Join(text, "\n"),
			StartSeconds: start,
			EndSeconds:   end,
		})
	}

	return entries, nil
}

// Validate reports format problems in a track; an empty result means the
// track is well formed.
func Validate(entries []Entry) []string {
	var issues []string
	for i, e := range entries {
		if e.Index != i+1 {
			issues = append(issues, fmt.Sprintf("cue %d: index %d out of sequence", i+1, e.Index))
		}
		if e.EndSeconds < e.StartSeconds {
			issues = append(issues, fmt.Sprintf("cue %d: ends before it starts", e.Index))
		}
		if i > 0 && e.StartSeconds < entries[i-1].EndSeconds {
			issues = append(issues, fmt.Sprintf("cue %d: overlaps cue %d", e.Index, entries[i-1].Index))
		}
	}
	return issues
}

// ReadSRT loads a prepared track from path. A track with no cues or with
// any problem Validate reports is rejected.
func ReadSRT(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}

	entries, err := ParseSRT(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s has no cues", path)
	}
	if issues := Validate(entries); len(issues) > 0 {
		return nil, fmt.Errorf("invalid track %s: %s", path, strings.Join(issues, "; "))
	}
	return entries, nil
}
