package api

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultAuditLimit is the number of entries an AuditLog keeps.
const DefaultAuditLimit = 100

// Entry describes one request made by the Client.
type Entry struct {
	ID       string          `json:"id"`
	Time     time.Time       `json:"timestamp"`
	Method   string          `json:"method"`
	URL      string          `json:"url"`
	Request  json.RawMessage `json:"requestData,omitempty"`
	Status   int             `json:"status,omitempty"`
	Response json.RawMessage `json:"responseData,omitempty"`
	Duration time.Duration   `json:"duration"`
	Err      string          `json:"error,omitempty"`
}

// Failed reports whether the request errored or got a 4xx/5xx answer.
func (e Entry) Failed() bool {
	return e.Err != "" || e.Status >= 400
}

// AuditLog keeps the most recent requests, newest first.
type AuditLog struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

// NewAuditLog returns a log holding at most limit entries.
func NewAuditLog(limit int) *AuditLog {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	return &AuditLog{limit: limit}
}

// Record adds an entry, dropping the oldest one when the log is full.
func (l *AuditLog) Record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]Entry{e}, l.entries...)
	if len(l.entries) > l.limit {
		l.entries = l.entries[:l.limit]
	}
}

// Entries returns a copy of all entries, newest first.
func (l *AuditLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Errors returns the failed entries, newest first.
func (l *AuditLog) Errors() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.Failed() {
			out = append(out, e)
		}
	}
	return out
}

// Clear drops every entry.
func (l *AuditLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
