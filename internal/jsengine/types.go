// Package jsengine is the kernel's JavaScript evaluator. It runs segments
// in a persistent goja runtime and also provides the syntax oracle, the
// held form used for wrap detection, and the hook globals $PreRead, $Pre,
// $Post and $PrePrint.
package jsengine

import (
	"time"

	"github.com/itsmostafa/gokernel/internal/history"
	"github.com/itsmostafa/gokernel/internal/sink"
)

// InteractWrapper is the call that marks a segment for interactive
// rendering, e.g. interact(plot(xs)).
const InteractWrapper = "interact"

// Message names raised by the engine.
const (
	ExceptionMessage = "Uncaught::exception"
	SyntaxMessage    = "Syntax::sntx"
)

// Options configures an Engine.
type Options struct {
	// JumpLabel marks the jumps raised by Throw. It must match the label
	// of the session's interceptor.
	JumpLabel string

	// Channel receives print, console.log and message output.
	Channel *sink.Channel

	// History backs In(n) and Out(n). Optional.
	History history.Store

	// Timeout bounds a single evaluation. Zero means no limit.
	Timeout time.Duration

	// WorkDir roots the fs object. Defaults to the working directory.
	WorkDir string
}
