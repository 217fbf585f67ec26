package cli

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"research-tracker/internal/settings"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	rt := addRuntimeFlags(fs)
	fileOnly := fs.Bool("file-only", false, "ignore .env and RESEARCH_* overrides")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		cfg settings.Settings
		err error
	)
	if *fileOnly {
		cfg, err = settings.ReadFile(rt.configPath())
	} else {
		cfg, err = settings.Load(settings.LoadOptions{
			ConfigPath: rt.configPath(),
			EnvFile:    strings.TrimSpace(*rt.envFile),
		})
	}
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": rt.configPath(),
			"settings":    settingsView(cfg),
		})
	}

	fmt.Printf("config: %s\n", rt.configPath())
	printSettings(cfg)
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	config := fs.String("config", settings.DefaultConfigPath, "settings file path")
	tickInterval := fs.Duration("tick-interval", 0, "time between progress ticks (0 keeps current)")
	maxStep := fs.Int("max-step", -1, "exclusive upper bound of a progress step, 2..100 (-1 keeps current)")
	confMin := fs.Int("confidence-min", -1, "lowest completion confidence, >=70 (-1 keeps current)")
	confMax := fs.Int("confidence-max", -1, "highest completion confidence, <=89 (-1 keeps current)")
	seed := fs.String("seed", "", "random seed, 0 uses the clock (empty keeps current)")
	seedHistory := fs.String("seed-history", "", "start with demo history: y|n (empty keeps current)")
	httpAddr := fs.String("http-addr", "", "serve listen address (empty keeps current)")
	exportPath := fs.String("export-path", "", "default snapshot export target, 'off' clears (empty keeps current)")
	logLevel := fs.String("log-level", "", "debug|info|warn|error (empty keeps current)")
	logFormat := fs.String("log-format", "", "text|json (empty keeps current)")
	logFile := fs.String("log-file", "", "log file path, 'off' clears (empty keeps current)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		seedValue   uint64
		seedSet     bool
		historyFlag bool
		historySet  bool
	)
	if v := strings.TrimSpace(*seed); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.New("--seed must be a non-negative integer")
		}
		seedValue, seedSet = n, true
	}
	if v := strings.TrimSpace(*seedHistory); v != "" {
		b, ok := parseBool(v)
		if !ok {
			return errors.New("--seed-history must be y or n")
		}
		historyFlag, historySet = b, true
	}
	if v := strings.ToLower(strings.TrimSpace(*logLevel)); v != "" {
		switch v {
		case settings.LogLevelDebug, settings.LogLevelInfo, settings.LogLevelWarn, settings.LogLevelError:
		default:
			return errors.New("--log-level must be debug, info, warn or error")
		}
	}
	if v := strings.ToLower(strings.TrimSpace(*logFormat)); v != "" && v != settings.LogFormatText && v != settings.LogFormatJSON {
		return errors.New("--log-format must be text or json")
	}
	if *tickInterval < 0 {
		return errors.New("--tick-interval must be > 0")
	}

	configPath := strings.TrimSpace(*config)
	res, err := settings.Update(configPath, func(s *settings.Settings) {
		if *tickInterval > 0 {
			s.TickInterval = *tickInterval
		}
		if *maxStep != -1 {
			s.MaxStep = *maxStep
		}
		if *confMin != -1 {
			s.ConfidenceMin = *confMin
		}
		if *confMax != -1 {
			s.ConfidenceMax = *confMax
		}
		if seedSet {
			s.Seed = seedValue
		}
		if historySet {
			s.SeedHistory = historyFlag
		}
		if v := strings.TrimSpace(*httpAddr); v != "" {
			s.HTTPAddr = v
		}
		s.ExportPath = applyClearable(s.ExportPath, *exportPath)
		if v := strings.TrimSpace(*logLevel); v != "" {
			s.Log.Level = v
		}
		if v := strings.TrimSpace(*logFormat); v != "" {
			s.Log.Format = v
		}
		s.Log.File = applyClearable(s.Log.File, *logFile)
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": configPath,
			"settings":    settingsView(res),
		})
	}

	fmt.Printf("updated settings in %s\n", configPath)
	printSettings(res)
	return nil
}

// applyClearable keeps current for empty input and clears it for "off".
func applyClearable(current, raw string) string {
	v := strings.TrimSpace(raw)
	switch {
	case v == "":
		return current
	case strings.EqualFold(v, "off"):
		return ""
	default:
		return v
	}
}

func settingsView(s settings.Settings) map[string]any {
	return map[string]any{
		"tick_interval":  s.TickInterval.String(),
		"max_step":       s.MaxStep,
		"confidence_min": s.ConfidenceMin,
		"confidence_max": s.ConfidenceMax,
		"seed":           s.Seed,
		"seed_history":   s.SeedHistory,
		"http_addr":      s.HTTPAddr,
		"export_path":    s.ExportPath,
		"log": map[string]any{
			"level":  s.Log.Level,
			"format": s.Log.Format,
			"file":   s.Log.File,
		},
	}
}

func printSettings(s settings.Settings) {
	fmt.Printf("tick_interval: %s\n", s.TickInterval)
	fmt.Printf("max_step: %d\n", s.MaxStep)
	fmt.Printf("confidence: %d..%d\n", s.ConfidenceMin, s.ConfidenceMax)
	fmt.Printf("seed: %s\n", formatSeed(s.Seed))
	fmt.Printf("seed_history: %s\n", yesNo(s.SeedHistory))
	fmt.Printf("http_addr: %s\n", s.HTTPAddr)
	fmt.Printf("export_path: %s\n", defaultIfEmpty(s.ExportPath, "(none)"))
	fmt.Printf("log: level=%s format=%s file=%s\n", s.Log.Level, s.Log.Format, defaultIfEmpty(s.Log.File, "(stderr)"))
}

func formatSeed(seed uint64) string {
	if seed == 0 {
		return "0 (clock)"
	}
	return strconv.FormatUint(seed, 10)
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show [--json] [--file-only]")
	fmt.Println("  settings set [--tick-interval D] [--max-step N] [--confidence-min N] [--confidence-max N]")
	fmt.Println("               [--seed N] [--seed-history y|n] [--http-addr ADDR] [--export-path PATH|off]")
	fmt.Println("               [--log-level L] [--log-format text|json] [--log-file PATH|off]")
}

