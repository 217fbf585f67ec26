package cli

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"strings"

	"research-tracker/internal/logging"
	"research-tracker/internal/model"
	"research-tracker/internal/settings"
	"research-tracker/internal/tracker"
)

type runtimeFlags struct {
	config  *string
	envFile *string
}

func addRuntimeFlags(fs *flag.FlagSet) runtimeFlags {
	return runtimeFlags{
		config:  fs.String("config", settings.DefaultConfigPath, "settings file path"),
		envFile: fs.String("env-file", settings.DefaultEnvFile, "dotenv file with RESEARCH_* overrides"),
	}
}

func (f runtimeFlags) configPath() string {
	return strings.TrimSpace(*f.config)
}

type runtimeEnv struct {
	cfg      settings.Settings
	logger   *slog.Logger
	closeLog func()
}

// loadRuntime resolves settings and builds the logger. Logs go to log.file
// when configured, otherwise to fallback.
func loadRuntime(f runtimeFlags, fallback io.Writer) (runtimeEnv, error) {
	cfg, err := settings.Load(settings.LoadOptions{
		ConfigPath: f.configPath(),
		EnvFile:    strings.TrimSpace(*f.envFile),
	})
	if err != nil {
		return runtimeEnv{}, err
	}

	out := fallback
	closeLog := func() {}
	if cfg.Log.File != "" {
		file, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return runtimeEnv{}, err
		}
		out = file
		closeLog = func() { _ = file.Close() }
	}
	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	}, out)
	return runtimeEnv{cfg: cfg, logger: logger, closeLog: closeLog}, nil
}

type researchStack struct {
	store  *tracker.Store
	sim    *tracker.Simulator
	intake *tracker.Intake
}

func newResearchStack(cfg settings.Settings, sched tracker.Scheduler, logger *slog.Logger) (*researchStack, error) {
	clock := tracker.SystemClock()
	src := tracker.NewRandomSource(cfg.Seed)
	store := tracker.NewStore(clock)
	sim := tracker.NewSimulator(tracker.SimulatorOptions{
		Store:      store,
		Scheduler:  sched,
		Clock:      clock,
		Interval:   cfg.TickInterval,
		Step:       tracker.UniformStep(src, cfg.MaxStep),
		Confidence: tracker.UniformConfidence(src, cfg.ConfidenceMin, cfg.ConfidenceMax),
		Logger:     logger.With("component", "simulator"),
	})
	intake := tracker.NewIntake(tracker.IntakeOptions{
		Store:     store,
		Simulator: sim,
		Clock:     clock,
		Logger:    logger.With("component", "intake"),
	})

	if cfg.SeedHistory {
		for _, job := range tracker.DemoHistory() {
			if err := intake.Adopt(job); err != nil {
				return nil, err
			}
		}
	}
	return &researchStack{store: store, sim: sim, intake: intake}, nil
}

// submitAll submits queries in order, skipping blank ones.
func submitAll(in *tracker.Intake, queries []string) ([]model.Job, error) {
	jobs := make([]model.Job, 0, len(queries))
	for _, q := range queries {
		job, err := in.Submit(q)
		if err != nil {
			if errors.Is(err, tracker.ErrBlankQuery) {
				continue
			}
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
