// Package history records the input text and output value of every
// executed segment, keyed by the session's execution index.
//
// Stores never allocate indices. The caller assigns them and must keep
// them strictly increasing; a store rejects an index that is not.
// History is append-only: there is no delete.
package history

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	// ErrNotFound is returned for an index with no recorded input.
	ErrNotFound = errors.New("history entry not found")

	// ErrIndexOrder is returned when an input index is not greater than
	// the last recorded one.
	ErrIndexOrder = errors.New("history index not increasing")

	// ErrOutputRecorded is returned when an entry's output slot is
	// already filled.
	ErrOutputRecorded = errors.New("history output already recorded")
)

// Entry is one executed segment.
type Entry struct {
	Index      int
	Input      string
	Output     any
	HasOutput  bool
	RecordedAt time.Time
}

// Text is an output kept as its display form, as persistent stores do.
type Text string

func (t Text) String() string { return string(t) }

// Store is an append-only execution history.
type Store interface {
	RecordInput(ctx context.Context, index int, text string) error
	RecordOutput(ctx context.Context, index int, value any) error
	Lookup(ctx context.Context, index int) (Entry, error)
	Entries(ctx context.Context) ([]Entry, error)
	Close() error
}

// Memory is an in-process Store.
type Memory struct {
	entries []Entry
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// RecordInput appends a new entry.
func (m *Memory) RecordInput(_ context.Context, index int, text string) error {
	if n := len(m.entries); n > 0 && index <= m.entries[n-1].Index {
		return ErrIndexOrder
	}
	m.entries = append(m.entries, Entry{Index: index, Input: text, RecordedAt: m.now()})
	return nil
}

// RecordOutput fills the output slot of the entry at index.
func (m *Memory) RecordOutput(_ context.Context, index int, value any) error {
	i, ok := m.find(index)
	if !ok {
		return ErrNotFound
	}
	if m.entries[i].HasOutput {
		return ErrOutputRecorded
	}
	m.entries[i].Output = value
	m.entries[i].HasOutput = true
	return nil
}

// Lookup returns the entry at index.
func (m *Memory) Lookup(_ context.Context, index int) (Entry, error) {
	i, ok := m.find(index)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return m.entries[i], nil
}

// Entries returns every entry in index order.
func (m *Memory) Entries(context.Context) ([]Entry, error) {
	return append([]Entry(nil), m.entries...), nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// find locates index; entries are sorted by construction.
func (m *Memory) find(index int) (int, bool) {
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].Index >= index
	})
	return i, i < len(m.entries) && m.entries[i].Index == index
}
