package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmostafa/gokernel/internal/expr"
	"github.com/itsmostafa/gokernel/internal/history"
	"github.com/itsmostafa/gokernel/internal/segment"
	"github.com/itsmostafa/gokernel/internal/sink"
)

const label = "test-label"

// calc is a tiny evaluator: sums of integers, "null", "print words",
// "throw N [tag]" and interact(...) wrappers.
type calc struct {
	ch   *sink.Channel
	seen []string
	opts []expr.EvalOptions
	fail error
}

func (c *calc) Evaluate(_ context.Context, src string, opts expr.EvalOptions) (any, error) {
	src = strings.TrimSpace(src)
	c.seen = append(c.seen, src)
	c.opts = append(c.opts, opts)
	if c.fail != nil {
		return nil, c.fail
	}

	fields := strings.Fields(src)
	switch {
	case src == "null":
		return expr.Null, nil
	case fields[0] == "print":
		c.ch.Print(strings.Join(fields[1:], " "))
		return expr.Null, nil
	case fields[0] == "throw":
		n, _ := strconv.ParseInt(fields[1], 10, 64)
		j := &expr.Jump{Label: label, Value: n}
		if len(fields) > 2 {
			j.Tag, j.Tagged = fields[2], true
		}
		return nil, j
	}

	var sum int64
	for _, part := range strings.Split(src, "+") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			c.ch.Message("Calc::nan", fmt.Sprintf("%q is not a number.", part))
			return expr.Failed, nil
		}
		sum += n
	}
	return sum, nil
}

func (c *calc) Hold(_ context.Context, src string) (expr.Held, error) {
	s := strings.TrimSpace(src)
	if strings.HasPrefix(s, "interact(") && strings.HasSuffix(s, ")") {
		return expr.Held{Source: src, Wrapper: "interact", Inner: s[len("interact(") : len(s)-1]}, nil
	}
	return expr.Held{Source: src}, nil
}

type hookFuncs map[expr.Hook]func(any) (any, error)

func (h hookFuncs) ApplyHook(_ context.Context, hook expr.Hook, v any) (any, error) {
	if f, ok := h[hook]; ok {
		return f(v)
	}
	return v, nil
}

type fixture struct {
	sess    *Session
	calc    *calc
	ch      *sink.Channel
	base    *bytes.Buffer
	history *history.Memory
}

func newFixture(t *testing.T, hooks expr.HookApplier) *fixture {
	t.Helper()
	f := &fixture{base: &bytes.Buffer{}, history: history.NewMemory()}
	f.ch = sink.NewChannel(f.base)
	f.calc = &calc{ch: f.ch}

	sess, err := New(Config{
		Evaluator: f.calc,
		Oracle:    segment.Balanced{},
		Hooks:     hooks,
		History:   f.history,
		Channel:   f.ch,
		JumpLabel: label,
	})
	require.NoError(t, err)
	f.sess = sess
	return f
}

func (f *fixture) run(t *testing.T, block string) *Result {
	t.Helper()
	res, err := f.sess.Run(context.Background(), block)
	require.NoError(t, err)
	return res
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Oracle: segment.Balanced{}, JumpLabel: label})
	assert.Error(t, err)
	_, err = New(Config{Evaluator: &calc{}, JumpLabel: label})
	assert.Error(t, err)
	_, err = New(Config{Evaluator: &calc{}, Oracle: segment.Balanced{}})
	assert.Error(t, err)
}

func TestRun_CompleteExpressions(t *testing.T) {
	f := newFixture(t, nil)

	res := f.run(t, "1\n2+3\n4")

	assert.Equal(t, []any{int64(1), int64(5), int64(4)}, res.Results)
	assert.Equal(t, []int{1, 2, 3}, res.Positions)
	assert.Equal(t, 3, res.Consumed)
	assert.Equal(t, 3, res.Line)
	assert.False(t, res.Interactive)
	assert.Empty(t, res.Diagnostics)
}

func TestRun_TrailingIncompleteFragment(t *testing.T) {
	f := newFixture(t, nil)

	res := f.run(t, "1+1\n2+")

	assert.Equal(t, []any{int64(2), expr.Failed}, res.Results)
	assert.Equal(t, []int{1, 2}, res.Positions)
	assert.Equal(t, 1, res.Consumed)
	assert.Equal(t, 1, f.sess.Line())
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, []string{"1+1"}, f.calc.seen, "malformed text must not be evaluated")
}

func TestRun_EmptyBlock(t *testing.T) {
	f := newFixture(t, nil)

	for _, block := range []string{"", "  \n\t\n"} {
		res := f.run(t, block)
		assert.Empty(t, res.Results)
		assert.Empty(t, res.Positions)
		assert.Equal(t, 0, res.Consumed)
		assert.False(t, res.Interactive)
	}
	assert.Equal(t, 0, f.sess.Line())
}

func TestRun_IndicesIncreaseAcrossBlocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.run(t, "1\n2")
	res := f.run(t, "3\n4+")
	assert.Equal(t, 1, res.Consumed)
	res = f.run(t, "5")
	assert.Equal(t, []int{4}, res.Positions)

	entries, err := f.history.Entries(ctx)
	require.NoError(t, err)
	var indices []int
	var inputs []string
	for _, e := range entries {
		indices = append(indices, e.Index)
		inputs = append(inputs, strings.TrimSpace(e.Input))
	}
	assert.Equal(t, []int{1, 2, 3, 4}, indices)
	assert.Equal(t, []string{"1", "2", "3", "5"}, inputs)
}

func TestRun_SuppressedOutputConsumesIndex(t *testing.T) {
	f := newFixture(t, nil)

	res := f.run(t, "null")

	assert.Empty(t, res.Results)
	assert.Empty(t, res.Positions)
	assert.Equal(t, 1, res.Consumed)

	e, err := f.history.Lookup(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, expr.IsNull(e.Output))
}

func TestRun_PositionsSkipSuppressed(t *testing.T) {
	f := newFixture(t, nil)
	f.run(t, "1\n2\n3")

	res := f.run(t, "7\nnull\n9")

	assert.Equal(t, []any{int64(7), int64(9)}, res.Results)
	assert.Equal(t, []int{4, 6}, res.Positions)
	assert.Equal(t, 3, res.Consumed)
}

func TestRun_UncaughtJump(t *testing.T) {
	f := newFixture(t, nil)

	res := f.run(t, "throw 5")

	require.Len(t, res.Results, 1)
	assert.Equal(t, expr.HeldJump{Value: int64(5)}, res.Results[0])
	assert.Equal(t, "Hold(Throw(5))", expr.Format(res.Results[0]))
	assert.Equal(t, "Throw::nocatch: Uncaught Throw(5) returned to top level.\n", res.Diagnostics)
	assert.Equal(t, []string{"Throw::nocatch"}, res.Messages)
	assert.Equal(t, 1, res.Consumed)

	res = f.run(t, "1")
	assert.Equal(t, []any{int64(1)}, res.Results)
	assert.Empty(t, res.Diagnostics)
}

func TestRun_TaggedJump(t *testing.T) {
	f := newFixture(t, nil)

	res := f.run(t, "1\nthrow 2 done\n3")

	assert.Equal(t, []any{
		int64(1),
		expr.HeldJump{Value: int64(2), Tag: "done", Tagged: true},
		int64(3),
	}, res.Results)
	assert.Contains(t, res.Diagnostics, `Uncaught Throw(2, "done") returned to top level.`)
}

func TestRun_DiagnosticIsolation(t *testing.T) {
	f := newFixture(t, nil)
	f.ch.Print("before")

	a := f.run(t, "print from block A")
	assert.Equal(t, "from block A\n", a.Diagnostics)
	assert.Equal(t, 1, a.Consumed)

	b := f.run(t, "2\nx")
	assert.NotContains(t, b.Diagnostics, "block A")
	assert.Contains(t, b.Diagnostics, "Calc::nan")
	assert.Equal(t, []any{int64(2), expr.Failed}, b.Results)
	assert.Equal(t, 2, b.Consumed, "an evaluation failure still consumes its index")

	f.ch.Print("after")
	assert.Equal(t, "before\nafter\n", f.base.String())
}

func TestRun_Interactive(t *testing.T) {
	f := newFixture(t, nil)

	res := f.run(t, "interact(3)")
	assert.True(t, res.Interactive)
	assert.Equal(t, []any{int64(3)}, res.Results)
	assert.Equal(t, []string{"3"}, f.calc.seen)
	assert.True(t, f.calc.opts[0].FrontEnd)

	res = f.run(t, "interact(3)\n4")
	assert.False(t, res.Interactive)

	res = f.run(t, "interact(3)\n4+")
	assert.False(t, res.Interactive)

	res = f.run(t, "5")
	assert.False(t, res.Interactive)
	assert.False(t, f.calc.opts[len(f.calc.opts)-1].FrontEnd)
}

func TestRun_Hooks(t *testing.T) {
	hooks := hookFuncs{
		expr.HookPreRead: func(v any) (any, error) {
			return strings.ReplaceAll(v.(string), "one", "1"), nil
		},
		expr.HookPre: func(v any) (any, error) {
			return v.(string) + "+10", nil
		},
		expr.HookPost: func(v any) (any, error) {
			return v.(int64) * 2, nil
		},
		expr.HookPrePrint: func(v any) (any, error) {
			return fmt.Sprintf("<%d>", v), nil
		},
	}
	f := newFixture(t, hooks)

	res := f.run(t, "one")

	assert.Equal(t, []any{"<22>"}, res.Results)
	e, err := f.history.Lookup(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "\n1", e.Input)
	assert.Equal(t, int64(22), e.Output)
}

func TestRun_NonStringPreReadIsIgnored(t *testing.T) {
	f := newFixture(t, hookFuncs{
		expr.HookPreRead: func(any) (any, error) { return int64(1), nil },
	})

	res := f.run(t, "4")

	assert.Equal(t, []any{int64(4)}, res.Results)
	assert.Equal(t, []string{"$PreRead::string"}, res.Messages)
}

func TestRun_JumpFromHook(t *testing.T) {
	f := newFixture(t, hookFuncs{
		expr.HookPost: func(v any) (any, error) {
			return nil, &expr.Jump{Label: label, Value: v}
		},
	})

	res := f.run(t, "8")

	assert.Equal(t, []any{expr.HeldJump{Value: int64(8)}}, res.Results)
	assert.Equal(t, []string{"Throw::nocatch"}, res.Messages)
}

func TestRun_EvaluatorFailure(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("evaluator gone")
	f.calc.fail = boom

	_, err := f.sess.Run(context.Background(), "print lost\n1")
	require.ErrorIs(t, err, boom)

	f.ch.Print("restored")
	assert.Equal(t, "restored\n", f.base.String())
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	ch := sink.NewChannel(nil)
	sess, err := New(Config{
		Evaluator: &calc{ch: ch},
		Oracle:    segment.Balanced{},
		Channel:   ch,
		JumpLabel: label,
		Metrics:   metrics,
	})
	require.NoError(t, err)

	_, err = sess.Run(context.Background(), "1\nthrow 2\n3+")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Blocks))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Segments))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Malformed))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Jumps))
}
