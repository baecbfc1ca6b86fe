package task

import "time"

type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Task is an immutable snapshot. Writers replace the whole value in the
// Store instead of mutating a shared instance.
type Task struct {
	ID           string    `json:"task_id"`
	Status       Status    `json:"status"`
	Progress     float64   `json:"progress"`
	AudioFile    string    `json:"audio_file"`
	AudioPath    string    `json:"-"` // Stored audio on local disk
	ArtifactPath string    `json:"-"` // <prefix>.json written by whisper
	Error        string    `json:"-"`
	FilesRemoved bool      `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	CompletedAt  time.Time `json:"completedAt,omitempty"`
}

// ProgressReport is what pollers see.
type ProgressReport struct {
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
}
