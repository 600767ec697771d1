package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/itsmostafa/gokernel/internal/expr"
	"github.com/itsmostafa/gokernel/internal/history"
	"github.com/itsmostafa/gokernel/internal/intercept"
	"github.com/itsmostafa/gokernel/internal/segment"
	"github.com/itsmostafa/gokernel/internal/sink"
)

// Session evaluates input blocks one at a time. It owns the execution
// counter; the history store and the diagnostic channel are written only
// through it.
type Session struct {
	mu sync.Mutex

	evaluator   expr.Evaluator
	oracle      expr.Oracle
	hooks       expr.HookApplier
	history     history.Store
	channel     *sink.Channel
	interceptor *intercept.Interceptor
	logger      *slog.Logger
	metrics     *Metrics

	line int
}

// New returns a session with the execution counter at zero.
func New(cfg Config) (*Session, error) {
	if cfg.Evaluator == nil {
		return nil, errors.New("session: evaluator is required")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("session: oracle is required")
	}
	if cfg.JumpLabel == "" {
		return nil, errors.New("session: jump label is required")
	}

	s := &Session{
		evaluator: cfg.Evaluator,
		oracle:    cfg.Oracle,
		hooks:     cfg.Hooks,
		history:   cfg.History,
		channel:   cfg.Channel,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	if s.history == nil {
		s.history = history.NewMemory()
	}
	if s.channel == nil {
		s.channel = sink.NewChannel(nil)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.interceptor = intercept.New(cfg.JumpLabel, cfg.Evaluator, s.channel)
	return s, nil
}

// Line returns the last execution index handed out.
func (s *Session) Line() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line
}

// History returns the session's history store.
func (s *Session) History() history.Store {
	return s.history
}

// Run segments block, evaluates every segment and returns the structured
// record. Malformed input, uncaught jumps and evaluation errors end up in
// the record; an error is returned only when a collaborator fails.
func (s *Session) Run(ctx context.Context, block string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	capture := sink.Open(s.channel)
	defer capture.Close()

	start := s.line
	s.logger.Debug("block started", "line", start, "bytes", len(block))

	text, err := s.preRead(ctx, block)
	if err != nil {
		return nil, err
	}

	var (
		raw  []any
		held expr.Held
	)
	t := segment.Begin(text)
	for {
		t, err = segment.Advance(t, s.oracle)
		if err != nil {
			return nil, err
		}
		if t.Done {
			break
		}
		s.count(func(m *Metrics) { m.Segments.Inc() })

		if t.Malformed {
			s.count(func(m *Metrics) { m.Malformed.Inc() })
			raw = append(raw, expr.Failed)
			continue
		}

		s.line++
		if err := s.history.RecordInput(ctx, s.line, t.Text); err != nil {
			return nil, fmt.Errorf("failed to record input %d: %w", s.line, err)
		}

		var v any
		v, held, err = s.evaluate(ctx, t.Text)
		if err != nil {
			return nil, err
		}

		v, err = s.apply(ctx, expr.HookPost, v)
		if err != nil {
			return nil, err
		}
		if err := s.history.RecordOutput(ctx, s.line, v); err != nil {
			return nil, fmt.Errorf("failed to record output %d: %w", s.line, err)
		}
		v, err = s.apply(ctx, expr.HookPrePrint, v)
		if err != nil {
			return nil, err
		}
		raw = append(raw, v)
	}

	res := &Result{
		Results:     []any{},
		Positions:   []int{},
		Interactive: t.Count == 1 && !t.Malformed && held.Interactive(),
		Consumed:    t.Count,
		Line:        s.line,
	}
	if t.Malformed {
		res.Consumed--
	}
	for i, v := range raw {
		if expr.IsNull(v) {
			continue
		}
		res.Results = append(res.Results, v)
		res.Positions = append(res.Positions, start+i+1)
	}
	res.Diagnostics, res.Messages = capture.Close()

	s.count(func(m *Metrics) { m.Blocks.Inc() })
	s.logger.Debug("block finished",
		"segments", t.Count,
		"consumed", res.Consumed,
		"results", len(res.Results),
		"line", s.line)
	return res, nil
}

// evaluate runs one well-formed segment through the interceptor. The
// prepare step strips an interact wrapper, enabling front-end access, and
// applies $Pre. The held form it parses is returned for wrap detection.
func (s *Session) evaluate(ctx context.Context, src string) (any, expr.Held, error) {
	var held expr.Held
	prepare := func(ctx context.Context, src string) (string, expr.EvalOptions, error) {
		var opts expr.EvalOptions
		h, err := s.evaluator.Hold(ctx, src)
		if err != nil {
			return "", opts, fmt.Errorf("failed to parse segment: %w", err)
		}
		held = h
		if h.Interactive() {
			src = h.Inner
			opts.FrontEnd = true
		}

		v, err := s.applyHook(ctx, expr.HookPre, src)
		if err != nil {
			return "", opts, err
		}
		if str, ok := v.(string); ok {
			return str, opts, nil
		}
		s.channel.Message("$Pre::string",
			fmt.Sprintf("$Pre returned %s instead of source text; the segment is evaluated unchanged.", expr.Format(v)))
		return src, opts, nil
	}

	out, err := s.interceptor.Evaluate(ctx, src, prepare)
	if err != nil {
		s.logger.Error("evaluation failed", "line", s.line, "error", err)
		return nil, held, fmt.Errorf("failed to evaluate segment %d: %w", s.line, err)
	}
	if out.Escaped() {
		s.count(func(m *Metrics) { m.Jumps.Inc() })
	}
	return out.Value(), held, nil
}

// preRead applies $PreRead to the raw block. A hook returning anything
// but a string leaves the block unchanged.
func (s *Session) preRead(ctx context.Context, block string) (string, error) {
	v, err := s.apply(ctx, expr.HookPreRead, block)
	if err != nil {
		return "", err
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	s.channel.Message("$PreRead::string",
		fmt.Sprintf("$PreRead returned %s instead of a string; the input is used unchanged.", expr.Format(v)))
	return block, nil
}

// apply runs a hook outside of segment evaluation. A jump escaping the
// hook becomes its held form, as it would inside evaluation.
func (s *Session) apply(ctx context.Context, h expr.Hook, v any) (any, error) {
	out, err := s.applyHook(ctx, h, v)
	if err == nil {
		return out, nil
	}
	if sig, ok := s.interceptor.Catch(err); ok {
		s.count(func(m *Metrics) { m.Jumps.Inc() })
		return sig.Held(), nil
	}
	s.logger.Error("hook failed", "hook", string(h), "error", err)
	return nil, fmt.Errorf("failed to apply %s: %w", h, err)
}

func (s *Session) applyHook(ctx context.Context, h expr.Hook, v any) (any, error) {
	if s.hooks == nil {
		return v, nil
	}
	return s.hooks.ApplyHook(ctx, h, v)
}

func (s *Session) count(fn func(*Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
