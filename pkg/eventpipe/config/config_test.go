package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGameKey   = "abcdefghijklmnopqrstuvwxyz012345"
	testSecretKey = "abcdefghijklmnopqrstuvwxyz0123456789ABCD"
)

// TestDuration verifies duration extraction with various input types.
func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want time.Duration
	}{
		{"string", "30s", 30 * time.Second},
		{"complex string", "1h30m", 90 * time.Minute},
		{"int seconds", 5, 5 * time.Second},
		{"int64 seconds", int64(7), 7 * time.Second},
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"duration", 2 * time.Minute, 2 * time.Minute},
		{"invalid string", "soon", 10 * time.Second},
		{"wrong type", true, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"timeout": tt.val})
			assert.Equal(t, tt.want, cfg.Duration("timeout", 10*time.Second))
		})
	}
}

// TestInt64 verifies integer coercion rules.
func TestInt64(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want int64
	}{
		{"int", 42, 42},
		{"int64", int64(1 << 40), 1 << 40},
		{"whole float", 500.0, 500},
		{"fractional float", 1.5, -1},
		{"string", "42", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"n": tt.val})
			assert.Equal(t, tt.want, cfg.Int64("n", -1))
		})
	}
}

// TestAccessorsMissingKey verifies defaults on an empty config.
func TestAccessorsMissingKey(t *testing.T) {
	cfg := config.New(nil)

	assert.Equal(t, "d", cfg.String("x", "d"))
	assert.True(t, cfg.Bool("x", true))
	assert.Equal(t, 3, cfg.Int("x", 3))
	assert.Equal(t, []string{"a"}, cfg.StringSlice("x", []string{"a"}))
}

// TestStringSlice verifies mixed slices fall back to the default.
func TestStringSlice(t *testing.T) {
	cfg := config.New(map[string]any{
		"ok":    []any{"gems", "gold"},
		"mixed": []any{"gems", 1},
		"typed": []string{"a", "b"},
	})

	assert.Equal(t, []string{"gems", "gold"}, cfg.StringSlice("ok", nil))
	assert.Nil(t, cfg.StringSlice("mixed", nil))
	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("typed", nil))
}

// TestFromYAML verifies YAML parsing into Settings.
func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
game_key: ` + testGameKey + `
secret_key: ` + testSecretKey + `
flush_interval: 2s
batch_size: 100
gzip: false
resource_currencies: [gems, gold]
`))
	require.NoError(t, err)

	s := config.FromConfig(cfg)
	assert.Equal(t, testGameKey, s.GameKey)
	assert.Equal(t, 2*time.Second, s.FlushInterval)
	assert.Equal(t, 100, s.BatchSize)
	assert.False(t, s.UseGzip)
	assert.Equal(t, []string{"gems", "gold"}, s.ResourceCurrencies)

	// Untouched keys keep defaults
	assert.Equal(t, int64(config.DefaultMaxStoreBytes), s.MaxStoreBytes)
	assert.Equal(t, config.DefaultBaseURL, s.BaseURL)
	assert.True(t, s.ErrorReporting)
	assert.NoError(t, s.Validate())
}

// TestFromJSON verifies JSON numbers become integers.
func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"batch_size": 250, "max_store_bytes": 2048}`))
	require.NoError(t, err)

	s := config.FromConfig(cfg)
	assert.Equal(t, 250, s.BatchSize)
	assert.Equal(t, int64(2048), s.MaxStoreBytes)
}

// TestFromFile verifies extension detection and errors.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "pipe.YML")
	require.NoError(t, os.WriteFile(yamlPath, []byte("build: 1.0.0\n"), 0o600))
	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", cfg.String("build", ""))

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	txtPath := filepath.Join(dir, "pipe.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o600))
	_, err = config.FromFile(txtPath)
	assert.ErrorContains(t, err, "unsupported config file extension")

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{"), 0o600))
	_, err = config.FromFile(badPath)
	assert.ErrorContains(t, err, "parse json")
}

// TestLoad_EnvOverridesFile verifies source precedence.
func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 100\nbuild: file\n"), 0o600))

	t.Setenv("EVENTPIPE_BUILD", "env")
	t.Setenv("EVENTPIPE_FLUSH_INTERVAL", "1s")
	t.Setenv("EVENTPIPE_RESOURCE_ITEM_TYPES", "weapons,boosters")

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, s.BatchSize)
	assert.Equal(t, "env", s.Build)
	assert.Equal(t, time.Second, s.FlushInterval)
	assert.Equal(t, []string{"weapons", "boosters"}, s.ResourceItemTypes)
}

// TestLoad_NoFile verifies defaults survive when no file is given.
func TestLoad_NoFile(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultFlushInterval, s.FlushInterval)
	assert.Equal(t, config.DefaultBatchSize, s.BatchSize)
}

// TestLoad_BadEnv verifies env parse errors are wrapped.
func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("EVENTPIPE_BATCH_SIZE", "lots")

	_, err := config.Load("")
	assert.ErrorContains(t, err, "parse env:")
}

// TestSettings_Validate verifies key shape and limit checks.
func TestSettings_Validate(t *testing.T) {
	valid := config.Defaults()
	valid.GameKey = testGameKey
	valid.SecretKey = testSecretKey

	tests := []struct {
		name    string
		mutate  func(*config.Settings)
		wantErr bool
	}{
		{"valid", func(*config.Settings) {}, false},
		{"short game key", func(s *config.Settings) { s.GameKey = "abc" }, true},
		{"secret with symbols", func(s *config.Settings) { s.SecretKey = testSecretKey[:39] + "!" }, true},
		{"zero interval", func(s *config.Settings) { s.FlushInterval = 0 }, true},
		{"zero batch", func(s *config.Settings) { s.BatchSize = 0 }, true},
		{"zero ceiling", func(s *config.Settings) { s.MaxStoreBytes = 0 }, true},
		{"empty base url", func(s *config.Settings) { s.BaseURL = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalidSettings)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
