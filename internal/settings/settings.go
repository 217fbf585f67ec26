package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"research-tracker/internal/model"
	"research-tracker/internal/reportfs"
)

// Settings tunes the research simulation and the processes hosting it.
// Values come from the YAML config file and may be overridden by RESEARCH_*
// environment variables.
type Settings struct {
	TickInterval  time.Duration `yaml:"tick_interval,omitempty" env:"TICK_INTERVAL"`
	MaxStep       int           `yaml:"max_step,omitempty" env:"MAX_STEP"`
	ConfidenceMin int           `yaml:"confidence_min,omitempty" env:"CONFIDENCE_MIN"`
	ConfidenceMax int           `yaml:"confidence_max,omitempty" env:"CONFIDENCE_MAX"`
	Seed          uint64        `yaml:"seed,omitempty" env:"SEED"`
	SeedHistory   bool          `yaml:"seed_history,omitempty" env:"SEED_HISTORY"`
	HTTPAddr      string        `yaml:"http_addr,omitempty" env:"HTTP_ADDR"`
	ExportPath    string        `yaml:"export_path,omitempty" env:"EXPORT_PATH"`
	Log           LogSettings   `yaml:"log,omitempty"`
}

type LogSettings struct {
	Level  string `yaml:"level,omitempty" env:"LOG_LEVEL"`
	Format string `yaml:"format,omitempty" env:"LOG_FORMAT"`
	File   string `yaml:"file,omitempty" env:"LOG_FILE"`
}

type LoadOptions struct {
	ConfigPath string
	// EnvFile is loaded into the process environment when present. Variables
	// already set win over the file.
	EnvFile string
}

func Defaults() Settings {
	return Settings{
		TickInterval:  DefaultTickInterval,
		MaxStep:       DefaultMaxStep,
		ConfidenceMin: DefaultConfidenceMin,
		ConfidenceMax: DefaultConfidenceMax,
		HTTPAddr:      DefaultHTTPAddr,
		Log: LogSettings{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Normalize replaces out-of-range values with defaults.
func Normalize(raw Settings) Settings {
	norm := raw
	if norm.TickInterval <= 0 {
		norm.TickInterval = DefaultTickInterval
	}
	if norm.MaxStep < MinMaxStep || norm.MaxStep > model.MaxProgress {
		norm.MaxStep = DefaultMaxStep
	}
	if norm.ConfidenceMin < model.MinConfidence || norm.ConfidenceMax > model.MaxConfidence || norm.ConfidenceMin > norm.ConfidenceMax {
		norm.ConfidenceMin = DefaultConfidenceMin
		norm.ConfidenceMax = DefaultConfidenceMax
	}
	norm.HTTPAddr = strings.TrimSpace(norm.HTTPAddr)
	if norm.HTTPAddr == "" {
		norm.HTTPAddr = DefaultHTTPAddr
	}
	norm.ExportPath = strings.TrimSpace(norm.ExportPath)
	norm.Log.Level = normalizeLogLevel(norm.Log.Level)
	norm.Log.Format = normalizeLogFormat(norm.Log.Format)
	norm.Log.File = strings.TrimSpace(norm.Log.File)
	return norm
}

// Validate reports the first value Normalize would have to replace.
func Validate(s Settings) error {
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be > 0")
	}
	if s.MaxStep < MinMaxStep || s.MaxStep > model.MaxProgress {
		return fmt.Errorf("max step must be between %d and %d", MinMaxStep, model.MaxProgress)
	}
	if s.ConfidenceMin < model.MinConfidence || s.ConfidenceMax > model.MaxConfidence {
		return fmt.Errorf("confidence range must stay within [%d,%d]", model.MinConfidence, model.MaxConfidence)
	}
	if s.ConfidenceMin > s.ConfidenceMax {
		return fmt.Errorf("confidence min %d exceeds max %d", s.ConfidenceMin, s.ConfidenceMax)
	}
	return nil
}

func normalizeLogLevel(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case LogLevelDebug:
		return LogLevelDebug
	case LogLevelWarn, "warning":
		return LogLevelWarn
	case LogLevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func normalizeLogFormat(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case LogFormatJSON:
		return LogFormatJSON
	default:
		return LogFormatText
	}
}

func normalizeConfigPath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return DefaultConfigPath
	}
	return p
}

// Load resolves settings from defaults, the config file, the env file and the
// process environment, in that order.
func Load(opts LoadOptions) (Settings, error) {
	s, err := ReadFile(opts.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	envFile := strings.TrimSpace(opts.EnvFile)
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return Settings{}, fmt.Errorf("load env file %s: %w", envFile, err)
			}
		}
	}

	if err := env.ParseWithOptions(&s, env.Options{Prefix: EnvPrefix}); err != nil {
		return Settings{}, fmt.Errorf("parse %s environment: %w", EnvPrefix, err)
	}
	return Normalize(s), nil
}

// ReadFile returns the settings stored at path layered over defaults. A
// missing file yields defaults.
func ReadFile(configPath string) (Settings, error) {
	path := normalizeConfigPath(configPath)
	s := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return Normalize(s), nil
}

func Save(configPath string, s Settings) error {
	path := normalizeConfigPath(configPath)
	data, err := yaml.Marshal(Normalize(s))
	if err != nil {
		return fmt.Errorf("marshal config %s: %w", path, err)
	}
	return reportfs.WriteBytes(path, data)
}

// Update applies mutate to the stored settings, validates the result and
// writes it back.
func Update(configPath string, mutate func(*Settings)) (Settings, error) {
	lock, err := reportfs.AcquireLock(normalizeConfigPath(configPath))
	if err != nil {
		return Settings{}, err
	}
	defer func() {
		_ = lock.Release()
	}()

	current, err := ReadFile(configPath)
	if err != nil {
		return Settings{}, err
	}
	next := current
	mutate(&next)
	next.HTTPAddr = strings.TrimSpace(next.HTTPAddr)
	if err := Validate(next); err != nil {
		return Settings{}, err
	}
	if err := Save(configPath, next); err != nil {
		return Settings{}, err
	}
	return Normalize(next), nil
}
