package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"capsolve/internal/logging"
	"capsolve/internal/solve"
	"capsolve/internal/world"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [world]",
		Short: "Re-solve a world file whenever it changes",
		Long: `Solves the goals of a world file, then watches the file and solves them again
after every save. Runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := a.worldPath(args)
			r := &reloader{app: a, path: path, out: cmd.OutOrStdout(), logger: logging.Get(logging.CategoryCLI)}
			r.reload(ctx)

			w, err := world.NewWatcher(path, a.cfg.GetWatchDebounce(), func() { r.reload(ctx) }, logging.Get(logging.CategoryWorld))
			if err != nil {
				return err
			}
			defer w.Stop()
			if err := w.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			stats := w.Stats()
			r.logger.Info("watch stopped",
				zap.Int("events", stats.Events),
				zap.Int("reloads", stats.Reloads),
				zap.Int("errors", stats.Errors))
			return nil
		},
	}
}

// reloader re-solves a world file. A file that fails to load keeps the previous solver, whose
// goals are solved again so the output always reflects the last good world.
type reloader struct {
	app    *app
	path   string
	out    io.Writer
	logger *zap.Logger

	mu      sync.Mutex
	current *solve.Solver
	specs   []world.GoalSpec
	runs    int
}

func (r *reloader) reload(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++

	header := fmt.Sprintf("--- %s (run %d)", r.path, r.runs)
	_, specs, s, err := r.app.loadWorld(r.path)
	if err != nil {
		r.logger.Warn("reload failed", zap.String("path", r.path), zap.Error(err))
		fmt.Fprintln(r.out, failStyle.Render(err.Error()))
		if r.current == nil {
			return
		}
		s, specs = r.current, r.specs
		header += " previous world"
	}

	qctx, cancel := context.WithTimeout(ctx, r.app.cfg.GetQueryTimeout())
	defer cancel()
	results, err := solveAll(qctx, s, specs, r.app.cfg.Solver.Parallelism, false)
	if err != nil {
		r.logger.Warn("solve interrupted", zap.Error(err))
		return
	}

	fmt.Fprintln(r.out, mutedStyle.Render(header))
	renderResults(r.out, results, false)
	r.current, r.specs = s, specs
}
