package jsengine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/itsmostafa/gokernel/internal/history"
)

// jumpPrelude defines Throw and Catch. It evaluates to a function taking
// the global object and the private jump label, so the label never
// appears as a global.
const jumpPrelude = `(function (global, label) {
	function Jump(value, tag, tagged) {
		this.value = value;
		this.tag = tag;
		this.tagged = tagged;
	}
	Object.defineProperty(Jump.prototype, label, { value: true });
	Jump.prototype.toString = function () {
		return this.tagged ? "Throw(" + this.value + ", " + this.tag + ")" : "Throw(" + this.value + ")";
	};

	global.Throw = function (value, tag) {
		throw new Jump(value, tag, arguments.length > 1);
	};
	global.Catch = function (body, tag) {
		var tagged = arguments.length > 1;
		try {
			return body();
		} catch (e) {
			if (e instanceof Jump && e.tagged === tagged && (!tagged || e.tag === tag)) {
				return e.value;
			}
			throw e;
		}
	};
})`

// setupEnvironment installs the kernel builtins in the runtime.
func (e *Engine) setupEnvironment() error {
	vm := e.vm

	e.failed = vm.NewObject()
	if err := e.failed.Set("toString", func(goja.FunctionCall) goja.Value {
		return vm.ToValue("$Failed")
	}); err != nil {
		return fmt.Errorf("failed to set $Failed: %w", err)
	}
	if err := vm.Set("$Failed", e.failed); err != nil {
		return fmt.Errorf("failed to set $Failed: %w", err)
	}
	if err := vm.Set("$FrontEnd", false); err != nil {
		return fmt.Errorf("failed to set $FrontEnd: %w", err)
	}

	// Arguments are converted here so a throwing toString surfaces as an
	// exception of the calling code.
	printFunc := func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}
		e.channel.Print(args...)
		return goja.Undefined()
	}
	if err := vm.Set("print", printFunc); err != nil {
		return fmt.Errorf("failed to set print: %w", err)
	}

	// console.log is an alias for print
	console := vm.NewObject()
	if err := console.Set("log", printFunc); err != nil {
		return fmt.Errorf("failed to set console.log: %w", err)
	}
	if err := vm.Set("console", console); err != nil {
		return fmt.Errorf("failed to set console: %w", err)
	}

	// message(name, text) raises a named diagnostic
	message := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(vm.NewTypeError("message requires 2 arguments: name, text"))
		}
		e.channel.Message(call.Arguments[0].String(), call.Arguments[1].String())
		return goja.Undefined()
	}
	if err := vm.Set("message", message); err != nil {
		return fmt.Errorf("failed to set message: %w", err)
	}

	// interact(x) is the identity; at the top of a segment the session
	// strips it and renders the result interactively
	interact := func(call goja.FunctionCall) goja.Value {
		return call.Argument(0)
	}
	if err := vm.Set(InteractWrapper, interact); err != nil {
		return fmt.Errorf("failed to set %s: %w", InteractWrapper, err)
	}

	if err := e.setupJumps(); err != nil {
		return fmt.Errorf("failed to setup Throw/Catch: %w", err)
	}
	if err := e.setupHistory(); err != nil {
		return fmt.Errorf("failed to setup history: %w", err)
	}
	if err := e.setupRegexModule(); err != nil {
		return fmt.Errorf("failed to setup regex module: %w", err)
	}
	if err := e.setupFiles(); err != nil {
		return fmt.Errorf("failed to setup fs module: %w", err)
	}
	return nil
}

func (e *Engine) setupJumps() error {
	val, err := e.vm.RunString(jumpPrelude)
	if err != nil {
		return err
	}
	install, ok := goja.AssertFunction(val)
	if !ok {
		return errors.New("jump prelude is not a function")
	}
	_, err = install(goja.Undefined(), e.vm.GlobalObject(), e.vm.ToValue(e.opts.JumpLabel))
	return err
}

// setupHistory adds In(n) and Out(n). Both return undefined for an index
// that has not been recorded. In trims the blank lines a segment carries.
func (e *Engine) setupHistory() error {
	lookup := func(call goja.FunctionCall) (history.Entry, bool) {
		if e.opts.History == nil {
			return history.Entry{}, false
		}
		entry, err := e.opts.History.Lookup(e.ctx, int(call.Argument(0).ToInteger()))
		if errors.Is(err, history.ErrNotFound) {
			return history.Entry{}, false
		}
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		return entry, true
	}

	in := func(call goja.FunctionCall) goja.Value {
		entry, ok := lookup(call)
		if !ok {
			return goja.Undefined()
		}
		return e.vm.ToValue(strings.TrimSpace(entry.Input))
	}
	if err := e.vm.Set("In", in); err != nil {
		return err
	}

	out := func(call goja.FunctionCall) goja.Value {
		entry, ok := lookup(call)
		if !ok || !entry.HasOutput {
			return goja.Undefined()
		}
		if text, ok := entry.Output.(history.Text); ok {
			return e.vm.ToValue(string(text))
		}
		return e.toJS(entry.Output)
	}
	return e.vm.Set("Out", out)
}

// setupRegexModule adds the 're' object with regex helper functions.
func (e *Engine) setupRegexModule() error {
	vm := e.vm
	re := vm.NewObject()

	// re.findAll(pattern, text) -> array of matches
	findAll := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(vm.NewTypeError("findAll requires 2 arguments: pattern, text"))
		}
		matches, err := e.re.FindAll(call.Arguments[0].String(), call.Arguments[1].String())
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(matches)
	}
	if err := re.Set("findAll", findAll); err != nil {
		return err
	}

	// re.search(pattern, text) -> first match or empty string
	search := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(vm.NewTypeError("search requires 2 arguments: pattern, text"))
		}
		match, err := e.re.Search(call.Arguments[0].String(), call.Arguments[1].String())
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(match)
	}
	if err := re.Set("search", search); err != nil {
		return err
	}

	// re.split(pattern, text, n) -> array of strings
	split := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(vm.NewTypeError("split requires at least 2 arguments: pattern, text"))
		}
		n := -1
		if len(call.Arguments) >= 3 {
			n = int(call.Arguments[2].ToInteger())
		}
		parts, err := e.re.Split(call.Arguments[0].String(), call.Arguments[1].String(), n)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(parts)
	}
	if err := re.Set("split", split); err != nil {
		return err
	}

	// re.replace(pattern, text, replacement) -> replaced string
	replace := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 3 {
			panic(vm.NewTypeError("replace requires 3 arguments: pattern, text, replacement"))
		}
		result, err := e.re.Replace(call.Arguments[0].String(), call.Arguments[1].String(), call.Arguments[2].String())
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(result)
	}
	if err := re.Set("replace", replace); err != nil {
		return err
	}

	return vm.Set("re", re)
}
