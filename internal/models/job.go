package models

// JobStatus represents the lifecycle state of a cleaning job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// JobState is the tracked state of one submitted table.
type JobState struct {
	ID      string    `json:"id"`
	Status  JobStatus `json:"status"`
	Percent int       `json:"percent"` // 0-100
	Message string    `json:"message,omitempty"`
	Total   int       `json:"total,omitempty"` // rows x classified columns
}

// Progress is the payload returned to a polling client.
type Progress struct {
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
}

// Progress projects the state onto the polling payload.
func (s JobState) Progress() Progress {
	return Progress{Status: s.Status, Progress: s.Percent, Message: s.Message}
}
