// Package sink owns the kernel's diagnostic channel and the scoped capture
// that redirects it into a buffer for the duration of one input block.
package sink

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Channel is the process-wide diagnostic channel. Evaluated code prints
// and raises messages through it. A Channel has a single writer: the
// active session.
type Channel struct {
	base     io.Writer
	dest     io.Writer
	messages []string

	// printing is set while a redirected Print formats its arguments.
	printing bool
}

// NewChannel returns a channel writing to w. w is also the default
// destination used by nested prints.
func NewChannel(w io.Writer) *Channel {
	if w == nil {
		w = io.Discard
	}
	return &Channel{base: w, dest: w}
}

// Print writes its arguments separated by spaces, followed by a newline.
// Arguments are formatted with fmt, so a Stringer may print in turn; such
// a nested call goes straight to the default destination.
func (c *Channel) Print(args ...any) {
	if c.printing {
		fmt.Fprintln(c.base, args...)
		return
	}
	c.printing = true
	defer func() { c.printing = false }()

	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	fmt.Fprintln(c.dest, strings.Join(parts, " "))
}

// Message emits a named diagnostic, e.g. Throw::nocatch, and records its
// name in the list of messages generated so far.
func (c *Channel) Message(name, text string) {
	c.messages = append(c.messages, name)
	fmt.Fprintf(c.dest, "%s: %s\n", name, text)
}

// Messages returns the names of the messages generated since the channel
// was created or last captured.
func (c *Channel) Messages() []string {
	return append([]string(nil), c.messages...)
}

// Capture is an active redirection of a Channel.
type Capture struct {
	ch           *Channel
	prevDest     io.Writer
	prevMessages []string
	buf          *bytes.Buffer
	closed       bool
}

// Open redirects ch into a private buffer and clears its message record.
// The previous destination and record are restored by Close.
func Open(ch *Channel) *Capture {
	c := &Capture{
		ch:           ch,
		prevDest:     ch.dest,
		prevMessages: ch.messages,
		buf:          &bytes.Buffer{},
	}
	ch.dest = c.buf
	ch.messages = nil
	return c
}

// Close restores the channel and returns the captured text together with
// the names of the messages raised while the capture was open. Calling
// Close again returns empty results.
func (c *Capture) Close() (string, []string) {
	if c.closed {
		return "", nil
	}
	c.closed = true

	messages := c.ch.messages
	c.ch.dest = c.prevDest
	c.ch.messages = c.prevMessages

	text := c.buf.String()
	c.buf = nil
	return text, messages
}
