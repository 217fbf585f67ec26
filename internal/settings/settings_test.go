package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-tracker/internal/reportfs"
)

func TestReadFileMissingReturnsDefaults(t *testing.T) {
	s, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestLoadLayersFileEnvFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "research-tracker.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("tick_interval: 2s\nmax_step: 30\nhttp_addr: 127.0.0.1:9000\nlog:\n  level: debug\n"), 0o644))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RESEARCH_SEED=7\nRESEARCH_MAX_STEP=20\n"), 0o644))

	t.Cleanup(func() { _ = os.Unsetenv("RESEARCH_SEED") })
	t.Setenv("RESEARCH_MAX_STEP", "25")
	t.Setenv("RESEARCH_LOG_FORMAT", "JSON")
	t.Setenv("RESEARCH_SEED_HISTORY", "true")

	s, err := Load(LoadOptions{ConfigPath: cfg, EnvFile: envFile})
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, s.TickInterval)
	assert.Equal(t, 25, s.MaxStep, "process environment wins over .env and file")
	assert.Equal(t, uint64(7), s.Seed)
	assert.True(t, s.SeedHistory)
	assert.Equal(t, "127.0.0.1:9000", s.HTTPAddr)
	assert.Equal(t, LogLevelDebug, s.Log.Level)
	assert.Equal(t, LogFormatJSON, s.Log.Format)
}

func TestLoadToleratesMissingEnvFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(LoadOptions{
		ConfigPath: filepath.Join(dir, "none.yaml"),
		EnvFile:    filepath.Join(dir, "none.env"),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultTickInterval, s.TickInterval)
}

func TestLoadRejectsMalformedEnvironment(t *testing.T) {
	t.Setenv("RESEARCH_TICK_INTERVAL", "soon")
	_, err := Load(LoadOptions{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESEARCH_")
}

func TestReadFileRejectsInvalidYAML(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("max_step: [1, 2\n"), 0o644))
	_, err := ReadFile(cfg)
	require.Error(t, err)
}

func TestNormalizeReplacesOutOfRangeValues(t *testing.T) {
	s := Normalize(Settings{
		TickInterval:  -time.Second,
		MaxStep:       500,
		ConfidenceMin: 60,
		ConfidenceMax: 95,
		HTTPAddr:      "  ",
		Log:           LogSettings{Level: "WARNING", Format: "xml"},
	})
	assert.Equal(t, DefaultTickInterval, s.TickInterval)
	assert.Equal(t, DefaultMaxStep, s.MaxStep)
	assert.Equal(t, DefaultConfidenceMin, s.ConfidenceMin)
	assert.Equal(t, DefaultConfidenceMax, s.ConfidenceMax)
	assert.Equal(t, DefaultHTTPAddr, s.HTTPAddr)
	assert.Equal(t, LogLevelWarn, s.Log.Level)
	assert.Equal(t, LogFormatText, s.Log.Format)

	stalled := Defaults()
	stalled.MaxStep = 1
	assert.Equal(t, DefaultMaxStep, Normalize(stalled).MaxStep, "a step bound of 1 never advances a job")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Settings) {}, ok: true},
		{name: "zero interval", mutate: func(s *Settings) { s.TickInterval = 0 }},
		{name: "step too large", mutate: func(s *Settings) { s.MaxStep = 101 }},
		{name: "step never advances", mutate: func(s *Settings) { s.MaxStep = 1 }},
		{name: "smallest step", mutate: func(s *Settings) { s.MaxStep = MinMaxStep }, ok: true},
		{name: "confidence below floor", mutate: func(s *Settings) { s.ConfidenceMin = 69 }},
		{name: "confidence inverted", mutate: func(s *Settings) { s.ConfidenceMin, s.ConfidenceMax = 85, 75 }},
		{name: "narrow confidence", mutate: func(s *Settings) { s.ConfidenceMin, s.ConfidenceMax = 80, 80 }, ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Defaults()
			tc.mutate(&s)
			err := Validate(s)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestUpdatePersistsAndRoundTrips(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "nested", "research-tracker.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg), 0o755))

	updated, err := Update(cfg, func(s *Settings) {
		s.TickInterval = 3 * time.Second
		s.SeedHistory = true
		s.Log.File = "/tmp/research.log"
	})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, updated.TickInterval)

	reloaded, err := ReadFile(cfg)
	require.NoError(t, err)
	assert.Equal(t, updated, reloaded)
}

func TestUpdateRejectsInvalidValuesWithoutWriting(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "research-tracker.yaml")
	_, err := Update(cfg, func(s *Settings) { s.MaxStep = 0 })
	require.Error(t, err)
	_, statErr := os.Stat(cfg)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpdateFailsWhileLocked(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "research-tracker.yaml")
	lock, err := reportfs.AcquireLock(cfg)
	require.NoError(t, err)
	defer func() { _ = lock.Release() }()

	_, err = Update(cfg, func(s *Settings) { s.MaxStep = 10 })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}
