package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Defaults for Settings.
const (
	DefaultBaseURL        = "https://api.gameanalytics.com/v2"
	DefaultFlushInterval  = 8 * time.Second
	DefaultBatchSize      = 500
	DefaultMaxStoreBytes  = 10 * 1024 * 1024
	DefaultErrorReportCap = 10
	DefaultStorePath      = "eventpipe.db"
	DefaultRequestTimeout = 60 * time.Second
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid settings")

var (
	gameKeyPattern   = regexp.MustCompile(`^[A-Za-z0-9]{32}$`)
	secretKeyPattern = regexp.MustCompile(`^[A-Za-z0-9]{40}$`)
)

// Settings is the typed pipeline configuration.
type Settings struct {
	GameKey   string `env:"EVENTPIPE_GAME_KEY"`
	SecretKey string `env:"EVENTPIPE_SECRET_KEY"`

	// BaseURL is the collector root; requests go to <BaseURL>/<GameKey>/events.
	BaseURL string `env:"EVENTPIPE_BASE_URL"`

	FlushInterval  time.Duration `env:"EVENTPIPE_FLUSH_INTERVAL"`
	RequestTimeout time.Duration `env:"EVENTPIPE_REQUEST_TIMEOUT"`
	BatchSize      int           `env:"EVENTPIPE_BATCH_SIZE"`
	MaxStoreBytes  int64         `env:"EVENTPIPE_MAX_STORE_BYTES"`
	ErrorReportCap int           `env:"EVENTPIPE_ERROR_REPORT_CAP"`
	UseGzip        bool          `env:"EVENTPIPE_GZIP"`
	StorePath      string        `env:"EVENTPIPE_STORE_PATH"`

	Build  string `env:"EVENTPIPE_BUILD"`
	UserID string `env:"EVENTPIPE_USER_ID"`

	ManualSessionHandling bool `env:"EVENTPIPE_MANUAL_SESSION_HANDLING"`
	ErrorReporting        bool `env:"EVENTPIPE_ERROR_REPORTING"`

	ResourceCurrencies []string `env:"EVENTPIPE_RESOURCE_CURRENCIES"`
	ResourceItemTypes  []string `env:"EVENTPIPE_RESOURCE_ITEM_TYPES"`
	CustomDimensions01 []string `env:"EVENTPIPE_CUSTOM_DIMENSIONS_01"`
	CustomDimensions02 []string `env:"EVENTPIPE_CUSTOM_DIMENSIONS_02"`
	CustomDimensions03 []string `env:"EVENTPIPE_CUSTOM_DIMENSIONS_03"`
}

// Defaults returns Settings with every default applied and no keys.
func Defaults() Settings {
	return Settings{
		BaseURL:        DefaultBaseURL,
		FlushInterval:  DefaultFlushInterval,
		RequestTimeout: DefaultRequestTimeout,
		BatchSize:      DefaultBatchSize,
		MaxStoreBytes:  DefaultMaxStoreBytes,
		ErrorReportCap: DefaultErrorReportCap,
		UseGzip:        true,
		StorePath:      DefaultStorePath,
		ErrorReporting: true,
	}
}

// FromConfig reads Settings from a Config, falling back to Defaults for
// missing keys.
func FromConfig(cfg Config) Settings {
	d := Defaults()
	return Settings{
		GameKey:               cfg.String("game_key", d.GameKey),
		SecretKey:             cfg.String("secret_key", d.SecretKey),
		BaseURL:               cfg.String("base_url", d.BaseURL),
		FlushInterval:         cfg.Duration("flush_interval", d.FlushInterval),
		RequestTimeout:        cfg.Duration("request_timeout", d.RequestTimeout),
		BatchSize:             cfg.Int("batch_size", d.BatchSize),
		MaxStoreBytes:         cfg.Int64("max_store_bytes", d.MaxStoreBytes),
		ErrorReportCap:        cfg.Int("error_report_cap", d.ErrorReportCap),
		UseGzip:               cfg.Bool("gzip", d.UseGzip),
		StorePath:             cfg.String("store_path", d.StorePath),
		Build:                 cfg.String("build", d.Build),
		UserID:                cfg.String("user_id", d.UserID),
		ManualSessionHandling: cfg.Bool("manual_session_handling", d.ManualSessionHandling),
		ErrorReporting:        cfg.Bool("error_reporting", d.ErrorReporting),
		ResourceCurrencies:    cfg.StringSlice("resource_currencies", nil),
		ResourceItemTypes:     cfg.StringSlice("resource_item_types", nil),
		CustomDimensions01:    cfg.StringSlice("custom_dimensions_01", nil),
		CustomDimensions02:    cfg.StringSlice("custom_dimensions_02", nil),
		CustomDimensions03:    cfg.StringSlice("custom_dimensions_03", nil),
	}
}

// Validate checks the keys and numeric limits.
func (s Settings) Validate() error {
	if !ValidKeys(s.GameKey, s.SecretKey) {
		return fmt.Errorf("%w: game key must be 32 and secret key 40 alphanumeric characters", ErrInvalidSettings)
	}
	if s.BaseURL == "" {
		return fmt.Errorf("%w: base url is required", ErrInvalidSettings)
	}
	if s.FlushInterval <= 0 {
		return fmt.Errorf("%w: flush interval must be positive", ErrInvalidSettings)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidSettings)
	}
	if s.MaxStoreBytes <= 0 {
		return fmt.Errorf("%w: max store bytes must be positive", ErrInvalidSettings)
	}
	if s.ErrorReportCap < 0 {
		return fmt.Errorf("%w: error report cap cannot be negative", ErrInvalidSettings)
	}
	return nil
}

// ValidKeys reports whether the game key and secret have the collector's
// expected shape.
func ValidKeys(gameKey, secretKey string) bool {
	return gameKeyPattern.MatchString(gameKey) && secretKeyPattern.MatchString(secretKey)
}
