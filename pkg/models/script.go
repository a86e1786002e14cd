package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Script is the approved roteiro for a job. Narration is the reference text
// used to correct transcription errors.
type Script struct {
	Title    string          `json:"title,omitempty"`
	Text     string          `json:"text,omitempty"`
	Segments []ScriptSegment `json:"segments,omitempty"`
}

// ScriptSegment is one narrated section of a script
type ScriptSegment struct {
	Narration   string  `json:"narration"`
	ImagePrompt string  `json:"image_prompt,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
}

// FlattenText joins the narrated segments into a single reference text.
// Scripts without narrated segments fall back to Text.
func (s *Script) FlattenText() string {
	if s == nil {
		return ""
	}

	parts := make([]string, 0, len(s.Segments))
	for _, seg := range s.Segments {
		if n := strings.TrimSpace(seg.Narration); n != "" {
			parts = append(parts, n)
		}
	}

	text := strings.Join(parts, " ")
	if text == "" {
		text = s.Text
	}

	return strings.Join(strings.Fields(text), " ")
}

// ParseScript decodes a script document. JSON bodies are decoded into a
// Script; anything else is treated as plain reference text.
func ParseScript(data []byte, contentType string) (*Script, error) {
	trimmed := bytes.TrimSpace(data)
	isJSON := strings.Contains(contentType, "json") ||
		(len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['))

	if !isJSON {
		return &Script{Text: string(trimmed)}, nil
	}

	// Some coordinators return the segment list directly
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var segments []ScriptSegment
		if err := json.Unmarshal(trimmed, &segments); err != nil {
			return nil, err
		}
		return &Script{Segments: segments}, nil
	}

	var script Script
	if err := json.Unmarshal(trimmed, &script); err != nil {
		return nil, err
	}

	return &script, nil
}
