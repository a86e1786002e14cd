package models

import (
	"strings"
	"time"
	"unicode"
)

// JobStatus is the lifecycle status of a job as seen by the remote coordinator
type JobStatus string

// JobStatus constants
const (
	JobStatusReady      JobStatus = "ready"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Valid reports whether s is one of the known statuses
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusReady, JobStatusProcessing, JobStatusDone, JobStatusFailed:
		return true
	}
	return false
}

// Job represents a single video waiting to be finished (subtitled and encoded)
type Job struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	SourceURL string    `json:"source_url"`
	ScriptURL string    `json:"script_url,omitempty"`
	Status    JobStatus `json:"status"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// OutputName returns the file name used when uploading the finished video.
// The result is always a single path element: separators and other unsafe
// characters become underscores and leading dots are dropped.
func (j Job) OutputName(ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	name := fileStem(j.Name)
	if name == "" {
		name = fileStem(j.ID)
	}
	if name == "" {
		name = "output"
	}
	return name + "_legendado" + ext
}

func fileStem(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.', r == ' ':
			return r
		}
		return '_'
	}, strings.TrimSpace(s))
	return strings.TrimLeft(s, ". ")
}
