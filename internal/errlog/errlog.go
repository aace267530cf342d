// Package errlog keeps the persistent, user-dismissible record of every
// logged condition, including the silent ones (auto-save failures), so a
// "my save didn't stick" report can be diagnosed after the fact.
package errlog

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	KindValidation = "validation"
	KindSave       = "save"
	KindSubmit     = "submit"
	KindNetwork    = "network"
	KindDocument   = "document"
)

type Entry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

// Log is a bounded append log; once full, the oldest entries are evicted.
type Log struct {
	mu      sync.Mutex
	max     int
	entries []Entry
}

func New(max int) *Log {
	if max <= 0 {
		max = 50
	}
	return &Log{max: max}
}

func (l *Log) Record(kind, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	slog.Warn(message, "kind", kind)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{At: time.Now().UTC(), Kind: kind, Message: message})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
