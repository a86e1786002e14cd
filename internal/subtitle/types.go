package subtitle

// Segment is a time-aligned span of recognized speech, in seconds
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Entry is one numbered cue of an SRT track
type Entry struct {
	Index        int     `json:"index"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}
