package logger

import "time"

// Entry is one request log record, published by the feed service and indexed by the
// log keeper.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	CallerID   string    `json:"caller_id,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Bytes      int       `json:"bytes"`
	Duration   float64   `json:"duration_sec"`
	Service    string    `json:"service"`
}

// DocumentID identifies the entry in the search index. Redelivered messages overwrite
// the same document.
func (e *Entry) DocumentID() string {
	return e.Service + e.RequestID
}
