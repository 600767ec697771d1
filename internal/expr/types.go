// Package expr declares the values and collaborator contracts shared by the
// kernel core: the evaluator, the syntax oracle and the hook applier, plus
// the sentinel values that flow through a session.
package expr

import (
	"context"
	"fmt"
)

// Hook names a user-registered transform applied at a fixed point of the
// evaluation of a block.
type Hook string

const (
	// HookPreRead is applied to the raw block text before segmentation.
	HookPreRead Hook = "$PreRead"
	// HookPre is applied to a segment's source before evaluation proper.
	HookPre Hook = "$Pre"
	// HookPost is applied to a raw result before it is recorded.
	HookPost Hook = "$Post"
	// HookPrePrint is applied to a recorded result before it is displayed.
	HookPrePrint Hook = "$PrePrint"
)

// Hooks lists every hook in application order.
var Hooks = []Hook{HookPreRead, HookPre, HookPost, HookPrePrint}

type nullValue struct{}

func (nullValue) String() string { return "Null" }

type failedValue struct{}

func (failedValue) String() string { return "$Failed" }

var (
	// Null is the "no displayable output" sentinel. Results equal to Null
	// still consume an execution index but are never shown.
	Null any = nullValue{}

	// Failed marks a segment whose evaluation could not produce a value.
	Failed any = failedValue{}
)

// IsNull reports whether v is the Null sentinel.
func IsNull(v any) bool {
	_, ok := v.(nullValue)
	return ok
}

// IsFailed reports whether v is the Failed sentinel.
func IsFailed(v any) bool {
	_, ok := v.(failedValue)
	return ok
}

// EvalOptions configures a single evaluation.
type EvalOptions struct {
	// FrontEnd enables front-end access for the evaluation. It is set
	// when an interact wrapper was stripped from the segment.
	FrontEnd bool
}

// Held is the parsed, unevaluated form of a segment.
type Held struct {
	// Source is the segment text as given.
	Source string

	// Wrapper names the special-rendering call wrapping the whole
	// segment, or is empty when there is none.
	Wrapper string

	// Inner is the wrapped argument as standalone expression source,
	// set when Wrapper is.
	Inner string
}

// Interactive reports whether the segment is a single expression wrapped
// for interactive rendering.
func (h Held) Interactive() bool {
	return h.Wrapper != ""
}

// Evaluator evaluates source text. Non-local jumps that escape the
// evaluated code are reported as *Jump errors; every other error means
// the evaluator itself is unusable.
type Evaluator interface {
	Evaluate(ctx context.Context, src string, opts EvalOptions) (any, error)
	Hold(ctx context.Context, src string) (Held, error)
}

// Oracle reports whether a candidate string is a syntactically complete
// standalone unit.
type Oracle interface {
	Complete(src string) (bool, error)
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(src string) bool

// Complete implements Oracle.
func (f OracleFunc) Complete(src string) (bool, error) {
	return f(src), nil
}

// HookApplier applies a registered hook to a value. Unregistered hooks
// return v unchanged.
type HookApplier interface {
	ApplyHook(ctx context.Context, h Hook, v any) (any, error)
}

// Jump is a non-local exit carrying a value out of evaluated code.
type Jump struct {
	// Label identifies the catcher the jump was aimed at.
	Label string

	Value any

	// Tag is the explicit tag given to the jump, valid when Tagged.
	Tag    any
	Tagged bool
}

func (j *Jump) Error() string {
	return fmt.Sprintf("uncaught %s", throwForm(j.Value, j.Tag, j.Tagged))
}

// HeldJump is the displayable form of an uncaught jump.
type HeldJump struct {
	Value  any
	Tag    any
	Tagged bool
}

// String renders the jump the way the kernel displays it:
// Hold(Throw(5)) or Hold(Throw(5, "tag")).
func (h HeldJump) String() string {
	return "Hold(" + h.Throw() + ")"
}

// Throw renders the jump without the Hold wrapper.
func (h HeldJump) Throw() string {
	return throwForm(h.Value, h.Tag, h.Tagged)
}

func throwForm(value, tag any, tagged bool) string {
	if tagged {
		return fmt.Sprintf("Throw(%s, %s)", Format(value), Format(tag))
	}
	return fmt.Sprintf("Throw(%s)", Format(value))
}
