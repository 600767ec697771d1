// Package segment splits a block of source text into individually
// evaluable segments. The only boundary signal it uses is an oracle that
// reports whether a candidate string is a complete standalone unit.
package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/itsmostafa/gokernel/internal/expr"
)

var lineBreak = regexp.MustCompile(`\r\n|\n`)

// Tracker holds the state of one segmentation pass over a block.
// Advance returns an updated copy. Once Done is set Text is no longer
// meaningful; Malformed still reports whether the last segment was.
type Tracker struct {
	// Lines are the unconsumed lines of the block.
	Lines []string

	// Count is the number of segments produced so far, malformed ones
	// included.
	Count int

	// Text is the most recently produced segment.
	Text string

	// Malformed is set when Text never became complete before the input
	// ran out.
	Malformed bool

	Done bool
}

// Segment is one produced unit of source.
type Segment struct {
	Text      string
	Malformed bool
}

// Begin starts a segmentation pass over text. A leading blank line is
// prepended so that input starting with whitespace-only lines segments
// the same way as input that does not.
func Begin(text string) Tracker {
	if strings.TrimSpace(text) == "" {
		return Tracker{Done: true}
	}
	lines := lineBreak.Split(text, -1)
	return Tracker{Lines: append([]string{""}, lines...)}
}

// Advance produces the next segment: the shortest prefix of the remaining
// lines the oracle reports complete, or, when no prefix is complete, all
// remaining lines marked malformed. When nothing but blank lines remain
// the tracker is marked done.
func Advance(t Tracker, o expr.Oracle) (Tracker, error) {
	if blank(t.Lines) {
		t.Lines = nil
		t.Text = ""
		t.Done = true
		return t, nil
	}

	var acc strings.Builder
	for i, line := range t.Lines {
		if i > 0 {
			acc.WriteByte('\n')
		}
		acc.WriteString(line)

		candidate := acc.String()
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		complete, err := o.Complete(candidate)
		if err != nil {
			return t, fmt.Errorf("syntax oracle failed: %w", err)
		}
		if complete {
			t.Text = candidate
			t.Malformed = false
			t.Lines = t.Lines[i+1:]
			t.Count++
			return t, nil
		}
	}

	t.Text = acc.String()
	t.Malformed = true
	t.Lines = nil
	t.Count++
	return t, nil
}

// Split drains a full segmentation pass over text.
func Split(text string, o expr.Oracle) ([]Segment, error) {
	var segments []Segment
	t := Begin(text)
	for {
		var err error
		t, err = Advance(t, o)
		if err != nil {
			return nil, err
		}
		if t.Done {
			return segments, nil
		}
		segments = append(segments, Segment{Text: t.Text, Malformed: t.Malformed})
	}
}

func blank(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}
