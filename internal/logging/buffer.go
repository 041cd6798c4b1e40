package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is one retained log record.
type Entry struct {
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// BufferHandler is a slog.Handler that retains the most recent records in
// memory. The remote debug channel serves its contents.
type BufferHandler struct {
	store *bufferStore
	level slog.Leveler
	attrs []slog.Attr
	group string
}

type bufferStore struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewBufferHandler returns a handler retaining up to size records.
func NewBufferHandler(size int) *BufferHandler {
	if size <= 0 {
		size = 1000
	}
	return &BufferHandler{
		store: &bufferStore{entries: make([]Entry, size)},
		level: slog.LevelDebug,
	}
}

func (h *BufferHandler) withLevel(level slog.Leveler) *BufferHandler {
	c := *h
	c.level = level
	return &c
}

func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		attrs[key] = a.Value.String()
		return true
	})
	e := Entry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   attrs,
	}

	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[s.next] = e
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return &c
}

// Entries returns up to n of the most recent records, oldest first. A
// non-positive n returns every retained record.
func (h *BufferHandler) Entries(n int) []Entry {
	s := h.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []Entry
	if s.full {
		all = append(all, s.entries[s.next:]...)
	}
	all = append(all, s.entries[:s.next]...)
	if n > 0 && n < len(all) {
		all = all[len(all)-n:]
	}
	return all
}

// Search returns the retained records whose message or attributes contain
// query, case-insensitively.
func (h *BufferHandler) Search(query string) []Entry {
	query = strings.ToLower(query)
	var matches []Entry
	for _, e := range h.Entries(0) {
		if strings.Contains(strings.ToLower(e.Message), query) {
			matches = append(matches, e)
			continue
		}
		for k, v := range e.Attrs {
			if strings.Contains(strings.ToLower(k), query) || strings.Contains(strings.ToLower(v), query) {
				matches = append(matches, e)
				break
			}
		}
	}
	return matches
}

// Clear drops every retained record.
func (h *BufferHandler) Clear() {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	s.next = 0
	s.full = false
}
