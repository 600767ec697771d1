// Package intercept evaluates one segment while capturing non-local jumps
// that escape user code, turning them into data instead of letting them
// unwind the session loop.
package intercept

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/itsmostafa/gokernel/internal/expr"
)

// NoCatchMessage is the message emitted for an uncaught jump. Front ends
// parse this name, so it keeps the evaluator's usual wording.
const NoCatchMessage = "Throw::nocatch"

// NewLabel returns a fresh private label for uncaught jumps. The evaluator
// must be configured with the same label as the Interceptor.
func NewLabel() string {
	return "$kernel-uncaught-" + uuid.NewString()
}

// Messenger receives the diagnostic describing an uncaught jump.
type Messenger interface {
	Message(name, text string)
}

// Signal is a jump that was not caught by user code.
type Signal struct {
	Value  any
	Tag    any
	Tagged bool
}

// Held converts the signal to its displayable form.
func (s *Signal) Held() expr.HeldJump {
	return expr.HeldJump{Value: s.Value, Tag: s.Tag, Tagged: s.Tagged}
}

// Outcome is the result of evaluating one segment: either a value or an
// uncaught jump.
type Outcome struct {
	value  any
	Signal *Signal
}

// Escaped reports whether the evaluation ended in an uncaught jump.
func (o Outcome) Escaped() bool {
	return o.Signal != nil
}

// Value returns the evaluated value, or the held form of the jump.
func (o Outcome) Value() any {
	if o.Signal != nil {
		return o.Signal.Held()
	}
	return o.value
}

// Prepare runs before evaluation proper, inside the interception scope. It
// returns the source to evaluate and the options to evaluate it with.
type Prepare func(ctx context.Context, src string) (string, expr.EvalOptions, error)

// Interceptor wraps an evaluator so that uncaught jumps carrying its label
// become Signals.
type Interceptor struct {
	label     string
	evaluator expr.Evaluator
	messenger Messenger
}

// New returns an Interceptor catching jumps labelled label.
func New(label string, ev expr.Evaluator, m Messenger) *Interceptor {
	return &Interceptor{label: label, evaluator: ev, messenger: m}
}

// Label returns the private label this interceptor catches.
func (i *Interceptor) Label() string {
	return i.label
}

// Evaluate runs prepare (when non-nil) and evaluates the resulting source.
// Jumps aimed at the interceptor's label are returned as an Outcome with a
// Signal; every other error is returned as is.
func (i *Interceptor) Evaluate(ctx context.Context, src string, prepare Prepare) (Outcome, error) {
	v, err := i.run(ctx, src, prepare)
	if err == nil {
		return Outcome{value: v}, nil
	}
	sig, ok := i.Catch(err)
	if !ok {
		return Outcome{}, err
	}
	return Outcome{Signal: sig}, nil
}

// Catch converts err into a Signal when it is a jump aimed at the
// interceptor's label, emitting the uncaught-jump message.
func (i *Interceptor) Catch(err error) (*Signal, bool) {
	var jump *expr.Jump
	if !errors.As(err, &jump) || jump.Label != i.label {
		return nil, false
	}

	sig := &Signal{Value: jump.Value, Tag: jump.Tag, Tagged: jump.Tagged}
	if i.messenger != nil {
		i.messenger.Message(NoCatchMessage,
			fmt.Sprintf("Uncaught %s returned to top level.", sig.Held().Throw()))
	}
	return sig, true
}

func (i *Interceptor) run(ctx context.Context, src string, prepare Prepare) (any, error) {
	var opts expr.EvalOptions
	if prepare != nil {
		var err error
		src, opts, err = prepare(ctx, src)
		if err != nil {
			return nil, err
		}
	}
	return i.evaluator.Evaluate(ctx, src, opts)
}
