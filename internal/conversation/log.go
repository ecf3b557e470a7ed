// Package conversation keeps the ordered record of completed translations.
package conversation

import (
	"time"

	"github.com/lexiqai/interpreter-gateway/internal/language"
)

// TimeLayout renders entry timestamps the way a locale time string reads.
const TimeLayout = "3:04:05 PM"

// Entry is one completed exchange. It is never mutated after creation.
type Entry struct {
	Input     string          `json:"input"`
	Output    string          `json:"output"`
	Source    language.Source `json:"inputLang"`
	Target    language.Target `json:"targetLang"`
	At        time.Time       `json:"at"`
	Timestamp string          `json:"timestamp"`
}

// NewEntry stamps an exchange with the given wall-clock time.
func NewEntry(input, output string, pair language.Pair, at time.Time) Entry {
	return Entry{
		Input:     input,
		Output:    output,
		Source:    pair.Source,
		Target:    pair.Target,
		At:        at,
		Timestamp: at.Format(TimeLayout),
	}
}

// Log is an append-only ordered sequence of entries.
// It is not safe for concurrent use; the pipeline store serializes access.
type Log struct {
	entries []Entry
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds an entry at the end.
func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.entries = nil
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy in insertion order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
