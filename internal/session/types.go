// Package session implements the evaluation loop of a kernel: one Run per
// input block, turning raw text into an ordered record of results.
package session

import (
	"log/slog"

	"github.com/itsmostafa/gokernel/internal/expr"
	"github.com/itsmostafa/gokernel/internal/history"
	"github.com/itsmostafa/gokernel/internal/sink"
)

// Config wires a Session to its collaborators.
type Config struct {
	// Evaluator runs segments. Required.
	Evaluator expr.Evaluator

	// Oracle decides segment boundaries. Required.
	Oracle expr.Oracle

	// Hooks applies $PreRead, $Pre, $Post and $PrePrint. When nil every
	// hook is the identity.
	Hooks expr.HookApplier

	// History records executed segments. Defaults to an in-memory store.
	History history.Store

	// Channel is the diagnostic channel evaluated code writes to.
	// Defaults to a channel that discards output outside of a block.
	Channel *sink.Channel

	// JumpLabel is the private label the evaluator uses for jumps that
	// escape user code. Required.
	JumpLabel string

	Logger  *slog.Logger
	Metrics *Metrics
}

// Result is the structured record produced for one input block.
type Result struct {
	// Results are the displayable per-segment results in order.
	Results []any `json:"results"`

	// Positions holds the execution index each result occupies.
	Positions []int `json:"positions"`

	// Interactive is set when the block was a single expression wrapped
	// for interactive rendering.
	Interactive bool `json:"interactive"`

	// Diagnostics is the text written to the diagnostic channel.
	Diagnostics string `json:"diagnostics"`

	// Messages are the names of the messages raised during the block.
	Messages []string `json:"messages,omitempty"`

	// Consumed is the number of execution indices the block used.
	Consumed int `json:"consumed"`

	// Line is the execution counter after the block.
	Line int `json:"line"`
}
