package capture

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Request is one captured delivery on the webhook path.
type Request struct {
	ID         string              `json:"id"`
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	Query      string              `json:"query,omitempty"`
	RemoteAddr string              `json:"remote_addr"`
	Headers    map[string][]string `json:"headers"`
	Body       string              `json:"body,omitempty"`
	JSON       json.RawMessage     `json:"json,omitempty"`
	ReceivedAt time.Time           `json:"received_at"`
	Recognized bool                `json:"recognized"`
	Saved      bool                `json:"saved"`
	Reason     string              `json:"reason"`
}

// Log keeps the most recent requests in memory. Total counts every request
// ever appended and is not reset by Clear.
type Log struct {
	mu      sync.RWMutex
	limit   int
	entries []Request
	total   int64
}

func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = 1000
	}
	return &Log{limit: limit}
}

func (l *Log) Append(r Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total++
	l.entries = append(l.entries, r)
	if over := len(l.entries) - l.limit; over > 0 {
		copy(l.entries, l.entries[over:])
		l.entries = l.entries[:l.limit]
	}
}

// Recent returns up to n requests, newest first. n <= 0 returns all
// retained requests.
func (l *Log) Recent(n int) []Request {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Request, 0, n)
	for i := len(l.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) Total() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Clear drops retained requests and reports how many were removed.
func (l *Log) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	l.entries = nil
	return n
}

// HeaderMap copies h so captured requests do not alias live headers.
func HeaderMap(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}
