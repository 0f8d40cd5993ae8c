// Package history persists export job records and editor settings in sqlite.
package history

import "time"

// Config keys.
const (
	KeyAuthToken = "auth_token"
	KeyDeviceID  = "device_id"
)

// Job is the stored record of one export.
type Job struct {
	ID           string    `json:"id"`
	SourceRef    string    `json:"source_ref"`
	State        string    `json:"state"`
	VisibleClips int       `json:"visible_clips"`
	TrimsDone    int       `json:"trims_done"`
	OutputBytes  int64     `json:"output_bytes"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Terminal reports whether the job has finished.
func (j *Job) Terminal() bool {
	return j.State == "succeeded" || j.State == "failed"
}
