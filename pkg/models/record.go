package models

import "time"

// JobState is a step of the per-job processing state machine
type JobState string

// JobState constants
const (
	JobStatePending      JobState = "pending"
	JobStateDownloading  JobState = "downloading"
	JobStateTranscribing JobState = "transcribing"
	JobStateSubtitling   JobState = "subtitling"
	JobStateEncoding     JobState = "encoding"
	JobStateUploading    JobState = "uploading"
	JobStateDone         JobState = "done"
	JobStateFailed       JobState = "failed"
)

// Terminal reports whether no further transitions are possible
func (s JobState) Terminal() bool {
	return s == JobStateDone || s == JobStateFailed
}

// JobRecord is the terminal outcome of one job within a batch run
type JobRecord struct {
	RunID       string        `json:"run_id"`
	JobID       string        `json:"job_id"`
	JobName     string        `json:"job_name,omitempty"`
	State       JobState      `json:"state"`
	FailedStage JobState      `json:"failed_stage,omitempty"`
	Error       string        `json:"error,omitempty"`
	OutputName  string        `json:"output_name,omitempty"`
	Entries     int           `json:"subtitle_entries"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// Failed reports whether the job ended in the failed state
func (r JobRecord) Failed() bool {
	return r.State == JobStateFailed
}

// BatchRun aggregates the records of one batch invocation
type BatchRun struct {
	ID          string      `json:"id"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
	Records     []JobRecord `json:"records"`
}

// Failed returns the number of failed records
func (r *BatchRun) Failed() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Failed() {
			n++
		}
	}
	return n
}

// Succeeded returns the number of records that reached done
func (r *BatchRun) Succeeded() int {
	n := 0
	for _, rec := range r.Records {
		if rec.State == JobStateDone {
			n++
		}
	}
	return n
}
