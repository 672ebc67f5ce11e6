package models

import "time"

// JobState is the lifecycle position of an ingestion job.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobPayload is what the queue carries to a worker. FilePath is a blob key.
type JobPayload struct {
	FilePath   string `json:"filePath"`
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	DocumentID string `json:"documentId"`
}

// JobResult is recorded when a job completes.
type JobResult struct {
	DocumentID string `json:"documentId"`
	ChunkCount int    `json:"chunkCount"`
	PageCount  int    `json:"pageCount"`
	TopicCount int    `json:"topicCount"`
}

// Job is the observable status record of one ingestion.
type Job struct {
	ID            string     `json:"jobId"`
	State         JobState   `json:"state"`
	Progress      int        `json:"progress"`
	Payload       JobPayload `json:"payload"`
	Result        *JobResult `json:"result,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IngestResponse is returned by the upload endpoints.
type IngestResponse struct {
	JobID      string `json:"jobId"`
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}
