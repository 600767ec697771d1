package jsengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"

	"github.com/itsmostafa/gokernel/internal/expr"
	"github.com/itsmostafa/gokernel/internal/sink"
)

// Engine evaluates JavaScript in a runtime that lives as long as the
// kernel session, so declarations persist between segments. It is not
// safe for concurrent use.
type Engine struct {
	vm      *goja.Runtime
	opts    Options
	channel *sink.Channel
	re      *RegexModule
	files   *Files

	// failed is the JS value standing for expr.Failed.
	failed *goja.Object

	// ctx is the context of the evaluation in progress, for builtins.
	ctx context.Context
}

// New creates an engine with the kernel builtins installed.
func New(opts Options) (*Engine, error) {
	if opts.JumpLabel == "" {
		return nil, errors.New("jsengine: jump label is required")
	}
	e := &Engine{
		vm:      goja.New(),
		opts:    opts,
		channel: opts.Channel,
		re:      NewRegexModule(),
		ctx:     context.Background(),
	}
	if e.channel == nil {
		e.channel = sink.NewChannel(nil)
	}
	files, err := NewFiles(opts.WorkDir)
	if err != nil {
		return nil, err
	}
	e.files = files
	if err := e.setupEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to setup environment: %w", err)
	}
	return e, nil
}

// Load runs a script such as a prelude registering hooks. Unlike
// Evaluate, any failure is returned as an error.
func (e *Engine) Load(ctx context.Context, name, src string) error {
	done := e.enter(ctx, expr.EvalOptions{})
	defer done()

	if _, err := e.vm.RunScript(name, src); err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	return nil
}

// Evaluate runs src and returns its completion value. undefined becomes
// expr.Null. Thrown exceptions and syntax errors are reported on the
// channel and yield expr.Failed; Throw jumps escaping src are returned as
// *expr.Jump.
func (e *Engine) Evaluate(ctx context.Context, src string, opts expr.EvalOptions) (any, error) {
	done := e.enter(ctx, opts)
	defer done()

	prog, err := goja.Compile("input", src, false)
	if err != nil {
		e.channel.Message(SyntaxMessage, err.Error())
		return expr.Failed, nil
	}
	val, err := e.vm.RunProgram(prog)
	if err != nil {
		return e.failure(err)
	}
	return e.fromJS(val), nil
}

// Complete reports whether src parses as a complete program.
func (e *Engine) Complete(src string) (bool, error) {
	_, err := goja.Parse("input", src)
	return err == nil, nil
}

// Hold parses src without evaluating it and detects a top-level
// interact(...) wrapper. Source that does not parse is held as is; the
// evaluation reports the error.
func (e *Engine) Hold(_ context.Context, src string) (expr.Held, error) {
	held := expr.Held{Source: src}

	prog, err := goja.Parse("input", src)
	if err != nil || len(prog.Body) != 1 {
		return held, nil
	}
	stmt, ok := prog.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return held, nil
	}
	call, ok := stmt.Expression.(*ast.CallExpression)
	if !ok || len(call.ArgumentList) != 1 {
		return held, nil
	}
	callee, ok := call.Callee.(*ast.Identifier)
	if !ok || string(callee.Name) != InteractWrapper {
		return held, nil
	}

	// Parser offsets are 1-based.
	arg := call.ArgumentList[0]
	from, to := int(arg.Idx0())-1, int(arg.Idx1())-1
	if from < 0 || to > len(src) || from >= to {
		return held, nil
	}
	// Parenthesized so the argument stays an expression: an object
	// literal or function would otherwise parse as a statement.
	held.Wrapper = InteractWrapper
	held.Inner = "(" + src[from:to] + ")"
	return held, nil
}

// ApplyHook calls the global function named by h with v. An undefined
// hook leaves v unchanged.
func (e *Engine) ApplyHook(ctx context.Context, h expr.Hook, v any) (any, error) {
	fn, ok := goja.AssertFunction(e.vm.Get(string(h)))
	if !ok {
		return v, nil
	}

	done := e.enter(ctx, expr.EvalOptions{})
	defer done()

	res, err := fn(goja.Undefined(), e.toJS(v))
	if err != nil {
		return e.failure(err)
	}
	return e.fromJS(res), nil
}

// enter prepares the runtime for one call: it publishes $FrontEnd and
// interrupts the runtime when ctx ends or the timeout elapses.
func (e *Engine) enter(ctx context.Context, opts expr.EvalOptions) func() {
	cancel := func() {}
	if e.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
	}
	stop := context.AfterFunc(ctx, func() {
		e.vm.Interrupt(ctx.Err())
	})

	prevCtx, prevFrontEnd := e.ctx, e.vm.Get("$FrontEnd")
	e.ctx = ctx
	e.vm.Set("$FrontEnd", opts.FrontEnd)

	return func() {
		stop()
		cancel()
		e.vm.ClearInterrupt()
		e.vm.Set("$FrontEnd", prevFrontEnd)
		e.ctx = prevCtx
	}
}

// failure classifies an error returned by the runtime.
func (e *Engine) failure(err error) (any, error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return nil, fmt.Errorf("evaluation interrupted: %v", interrupted.Value())
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		if jump, ok := e.jump(exc.Value()); ok {
			return nil, jump
		}
		text := exc.Error()
		if v := exc.Value(); v != nil {
			text = v.String()
		}
		e.channel.Message(ExceptionMessage, text)
		return expr.Failed, nil
	}
	return nil, err
}

// jump recognises a value thrown by Throw.
func (e *Engine) jump(v goja.Value) (*expr.Jump, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || !truthy(obj.Get(e.opts.JumpLabel)) {
		return nil, false
	}
	j := &expr.Jump{
		Label:  e.opts.JumpLabel,
		Value:  e.fromJS(obj.Get("value")),
		Tagged: truthy(obj.Get("tagged")),
	}
	if j.Tagged {
		j.Tag = e.fromJS(obj.Get("tag"))
	}
	return j, true
}

func truthy(v goja.Value) bool {
	return v != nil && v.ToBoolean()
}

func (e *Engine) fromJS(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) {
		return expr.Null
	}
	if v.SameAs(e.failed) {
		return expr.Failed
	}
	return v.Export()
}

func (e *Engine) toJS(v any) goja.Value {
	switch {
	case expr.IsNull(v):
		return goja.Undefined()
	case expr.IsFailed(v):
		return e.failed
	}
	return e.vm.ToValue(v)
}
