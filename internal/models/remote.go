package models

// ProcessingState describes remote-side ingestion of an uploaded media blob.
type ProcessingState string

const (
	StatePending    ProcessingState = "pending"
	StateProcessing ProcessingState = "processing"
	StateReady      ProcessingState = "ready"
	StateFailed     ProcessingState = "failed"
)

// InProgress is true while the remote side has not settled yet.
func (s ProcessingState) InProgress() bool {
	return s == StatePending || s == StateProcessing
}

// RemoteHandle references media previously uploaded to the inference service.
type RemoteHandle struct {
	ID       string          `json:"id"`
	URI      string          `json:"uri"`
	MIMEType string          `json:"mime_type"`
	State    ProcessingState `json:"state"`
	Error    string          `json:"error,omitempty"`
}
