package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"research-tracker/internal/httpapi"
	"research-tracker/internal/model"
	"research-tracker/internal/tracker"
)

const shutdownTimeout = 5 * time.Second

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	rt := addRuntimeFlags(fs)
	addr := fs.String("addr", "", "listen address (default: http_addr setting)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := loadRuntime(rt, os.Stderr)
	if err != nil {
		return err
	}
	defer env.closeLog()

	listenAddr := strings.TrimSpace(*addr)
	if listenAddr == "" {
		listenAddr = env.cfg.HTTPAddr
	}

	loop := tracker.NewLoop(0)
	stack, err := newResearchStack(env.cfg, loop, env.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	handler := httpapi.NewResearchHandler(httpapi.Options{
		Reader:    stack.store,
		Submitter: loopSubmitter(gctx, loop, stack.intake),
		Logger:    env.logger.With("component", "http"),
	})
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		env.logger.Info("research api listening", "addr", listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", listenAddr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		env.logger.Info("research api shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// loopSubmitter runs each submit on the event loop so intake and ticks never
// interleave.
func loopSubmitter(ctx context.Context, loop *tracker.Loop, intake *tracker.Intake) httpapi.SubmitterFunc {
	return func(raw string) (model.Job, error) {
		var (
			job       model.Job
			submitErr error
		)
		if err := loop.Call(ctx, func() {
			job, submitErr = intake.Submit(raw)
		}); err != nil {
			return model.Job{}, err
		}
		return job, submitErr
	}
}
