package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DecisionEvent records the outcome of a single loopback evaluation.
type DecisionEvent struct {
	Timestamp      string `json:"ts"`
	Tool           string `json:"tool,omitempty"`
	Reason         string `json:"reason"`
	ShouldLoopback bool   `json:"loopback"`
	Candidates     int    `json:"candidates"`
	Uploaded       int    `json:"uploaded,omitempty"`
	UploadedBytes  int    `json:"uploaded_bytes,omitempty"`
}

// Tracker appends decision events to a JSONL file.
type Tracker struct {
	filePath string
	mu       sync.Mutex
}

// NewTracker creates a tracker that writes to workspace/metrics/loopback.jsonl.
func NewTracker(workspace string) *Tracker {
	dir := filepath.Join(workspace, "metrics")
	os.MkdirAll(dir, 0755)
	return &Tracker{
		filePath: filepath.Join(dir, "loopback.jsonl"),
	}
}

// Record appends a decision event to the JSONL file.
func (t *Tracker) Record(event DecisionEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().Format(time.RFC3339)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	f.Write(data)
	f.Write([]byte("\n"))
}
