package behavior

import (
	"time"
)

// LogEntry is one line of an instance event or execution log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Frame   uint64    `json:"frame,omitempty"`
	Message string    `json:"message"`
}

// RollingLog keeps the most recent entries up to a fixed capacity. A
// capacity of zero disables it.
type RollingLog struct {
	entries []LogEntry
	next    int
	full    bool
}

// NewRollingLog returns a log retaining capacity entries.
func NewRollingLog(capacity int) *RollingLog {
	if capacity < 0 {
		capacity = 0
	}
	return &RollingLog{entries: make([]LogEntry, capacity)}
}

// Cap returns the capacity.
func (l *RollingLog) Cap() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Add appends e, evicting the oldest entry once full.
func (l *RollingLog) Add(e LogEntry) {
	if l == nil || len(l.entries) == 0 {
		return
	}
	l.entries[l.next] = e
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Len returns the number of retained entries.
func (l *RollingLog) Len() int {
	if l == nil {
		return 0
	}
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Entries returns the retained entries, oldest first.
func (l *RollingLog) Entries() []LogEntry {
	if l.Len() == 0 {
		return nil
	}
	if !l.full {
		return append([]LogEntry(nil), l.entries[:l.next]...)
	}
	out := make([]LogEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

// Clear drops every entry.
func (l *RollingLog) Clear() {
	if l == nil {
		return
	}
	clear(l.entries)
	l.next = 0
	l.full = false
}
