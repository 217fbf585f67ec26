package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"research-tracker/internal/board"
	"research-tracker/internal/model"
	"research-tracker/internal/query"
	"research-tracker/internal/reportfs"
	"research-tracker/internal/tracker"
)

type submitResult struct {
	Submitted  []model.Job    `json:"submitted"`
	Snapshot   model.Snapshot `json:"snapshot"`
	ExportPath string         `json:"export_path,omitempty"`
}

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	rt := addRuntimeFlags(fs)
	wait := fs.Bool("wait", false, "keep running until every job completes")
	progress := fs.Bool("progress", true, "show live board while waiting")
	queryExpr := fs.String("query", "", "JMESPath expression applied to the final snapshot")
	export := fs.String("export", "", "write the final snapshot to this file or directory (default: export_path setting)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	queries := fs.Args()
	if len(queries) == 0 {
		company, err := promptRequired("company")
		if err != nil {
			return errors.New("at least one company name is required")
		}
		queries = []string{company}
	}
	expr := strings.TrimSpace(*queryExpr)
	if expr != "" {
		if err := query.NewEvaluator().Validate(expr); err != nil {
			return fmt.Errorf("invalid --query: %w", err)
		}
	}

	env, err := loadRuntime(rt, os.Stderr)
	if err != nil {
		return err
	}
	defer env.closeLog()

	loop := tracker.NewLoop(0)
	stack, err := newResearchStack(env.cfg, loop, env.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(gctx)

	g.Go(func() error {
		return loop.Run(loopCtx)
	})

	var submitted []model.Job
	g.Go(func() error {
		defer stopLoop()
		var submitErr error
		if err := loop.Call(gctx, func() {
			submitted, submitErr = submitAll(stack.intake, queries)
		}); err != nil {
			return err
		}
		if submitErr != nil {
			return submitErr
		}
		if !*wait {
			return nil
		}

		var live *board.Live
		if *progress && !*jsonOut && expr == "" {
			live = board.NewLive(board.Options{
				Source:       stack.store,
				Out:          os.Stdout,
				TickInterval: env.cfg.TickInterval,
				MaxStep:      env.cfg.MaxStep,
				Plain:        !stdoutIsTTY(),
			})
			live.Start()
			defer live.Stop()
		}
		return waitForCompletion(gctx, stack.store)
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("submit interrupted")
		}
		return err
	}

	snap := stack.store.Snapshot()
	res := submitResult{Submitted: submitted, Snapshot: snap}

	target := strings.TrimSpace(*export)
	if target == "" {
		target = env.cfg.ExportPath
	}
	if target != "" {
		path, err := reportfs.ResolveExportPath(target, time.Now())
		if err != nil {
			return err
		}
		if err := reportfs.WriteJSON(path, snap); err != nil {
			return err
		}
		res.ExportPath = path
		env.logger.Info("snapshot exported", "path", path, "jobs", snap.Total)
	}

	if expr != "" {
		out, err := query.Snapshot(nil, expr, snap)
		if err != nil {
			return err
		}
		return printJSON(out)
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Printf("submitted %d research job(s)\n", len(submitted))
	if !*wait {
		for _, j := range submitted {
			fmt.Printf("  %s  %s\n", j.ID, j.Name)
		}
	} else if !*progress {
		fmt.Print(board.Render(snap, env.cfg.TickInterval, env.cfg.MaxStep))
	}
	if res.ExportPath != "" {
		fmt.Printf("exported snapshot: %s\n", res.ExportPath)
	}
	return nil
}

// waitForCompletion blocks until no job in store is still in progress.
func waitForCompletion(ctx context.Context, store *tracker.Store) error {
	changes, cancel := store.Subscribe()
	defer cancel()
	for store.Snapshot().InProgress > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
		}
	}
	return nil
}
