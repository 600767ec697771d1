package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/itsmostafa/gokernel/internal/config"
	"github.com/itsmostafa/gokernel/internal/expr"
	"github.com/itsmostafa/gokernel/internal/history"
	"github.com/itsmostafa/gokernel/internal/intercept"
	"github.com/itsmostafa/gokernel/internal/jsengine"
	"github.com/itsmostafa/gokernel/internal/segment"
	"github.com/itsmostafa/gokernel/internal/session"
	"github.com/itsmostafa/gokernel/internal/sink"
)

// kernel is a session wired to the JavaScript engine.
type kernel struct {
	session   *session.Session
	engine    *jsengine.Engine
	oracle    expr.Oracle
	store     history.Store
	registry  *prometheus.Registry
	sessionID string
}

// openKernel builds a kernel from cfg. Output printed outside of a block,
// e.g. by prelude scripts, goes to out.
func openKernel(ctx context.Context, cfg config.Config, out io.Writer, logger *slog.Logger) (*kernel, error) {
	k := &kernel{
		registry:  prometheus.NewRegistry(),
		sessionID: uuid.NewString(),
	}

	if cfg.History.Path != "" {
		store, err := history.OpenSQLite(ctx, cfg.History.Path, k.sessionID)
		if err != nil {
			return nil, err
		}
		k.store = store
	} else {
		k.store = history.NewMemory()
	}

	label := intercept.NewLabel()
	channel := sink.NewChannel(out)

	engine, err := jsengine.New(jsengine.Options{
		JumpLabel: label,
		Channel:   channel,
		History:   k.store,
		Timeout:   cfg.Timeout,
		WorkDir:   cfg.WorkDir,
	})
	if err != nil {
		k.store.Close()
		return nil, err
	}
	k.engine = engine

	switch cfg.Oracle {
	case config.OracleBalanced:
		k.oracle = segment.Balanced{}
	default:
		k.oracle = engine
	}

	for _, path := range cfg.Prelude {
		src, err := os.ReadFile(path)
		if err != nil {
			k.store.Close()
			return nil, fmt.Errorf("failed to read prelude: %w", err)
		}
		if err := engine.Load(ctx, path, string(src)); err != nil {
			k.store.Close()
			return nil, err
		}
		logger.Debug("prelude loaded", "path", path)
	}

	k.session, err = session.New(session.Config{
		Evaluator: engine,
		Oracle:    k.oracle,
		Hooks:     engine,
		History:   k.store,
		Channel:   channel,
		JumpLabel: label,
		Logger:    logger.With("session", k.sessionID),
		Metrics:   session.NewMetrics(k.registry),
	})
	if err != nil {
		k.store.Close()
		return nil, err
	}

	logger.Debug("kernel started", "session", k.sessionID, "oracle", cfg.Oracle, "history", cfg.History.Path)
	return k, nil
}

func (k *kernel) Close() error {
	return k.store.Close()
}
