package registry

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

// Finished reports whether s is a terminal status.
func (s JobStatus) Finished() bool {
	return s == JobDone || s == JobFailed || s == JobCanceled
}

// Job is one clip request as recorded in the ledger. Times are Unix seconds;
// FinishedAt is 0 while the job is in flight.
type Job struct {
	ID         string    `json:"id"`
	SourceURL  string    `json:"source_url"`
	VideoURL   string    `json:"video_url,omitempty"`
	Title      string    `json:"title,omitempty"`
	StartSec   float64   `json:"start_sec"`
	EndSec     float64   `json:"end_sec"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	FileSize   int64     `json:"file_size,omitempty"`
	CreatedAt  int64     `json:"created_at"`
	FinishedAt int64     `json:"finished_at,omitempty"`
}
