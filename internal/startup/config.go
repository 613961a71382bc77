package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"media-catalog/internal/logging"
)

// DatabaseFile is the SQLite file created inside DatabaseDir.
const DatabaseFile = "catalog.db"

// Config holds all application configuration. Every field is read from the
// environment variable named by its mapstructure tag.
type Config struct {
	StoreDir    string `mapstructure:"STORE_DIR" validate:"required"`
	DatabaseDir string `mapstructure:"DATABASE_DIR" validate:"required"`
	LogDir      string `mapstructure:"LOG_DIR"`

	Port           int           `mapstructure:"PORT" validate:"min=1,max=65535"`
	MetricsPort    int           `mapstructure:"METRICS_PORT" validate:"min=1,max=65535,nefield=Port"`
	MetricsEnabled bool          `mapstructure:"METRICS_ENABLED"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT" validate:"gt=0"`

	WatchEnabled    bool          `mapstructure:"WATCH_ENABLED"`
	DebounceTimeout time.Duration `mapstructure:"DEBOUNCE_TIMEOUT" validate:"gt=0"`
	FSTimeout       time.Duration `mapstructure:"FS_TIMEOUT" validate:"gte=0"`
	ScanSchedule    string        `mapstructure:"SCAN_SCHEDULE" validate:"cronspec"`
	ScanOnStartup   bool          `mapstructure:"SCAN_ON_STARTUP"`
	SkipHidden      bool          `mapstructure:"SKIP_HIDDEN"`

	StreamChunkSize int64 `mapstructure:"STREAM_CHUNK_SIZE" validate:"min=4096,max=67108864"`

	FFProbePath  string        `mapstructure:"FFPROBE_PATH"`
	ProbeTimeout time.Duration `mapstructure:"PROBE_TIMEOUT" validate:"gt=0"`
	ProbeWorkers int           `mapstructure:"PROBE_WORKERS" validate:"gte=0,lte=64"`

	MemoryLimit int64   `mapstructure:"MEMORY_LIMIT" validate:"gte=0"`
	MemoryRatio float64 `mapstructure:"MEMORY_RATIO" validate:"gt=0,lte=1"`

	LogHealthChecks bool `mapstructure:"LOG_HEALTH_CHECKS"`
	LogStreamChunks bool `mapstructure:"LOG_STREAM_CHUNKS"`

	// Derived
	DatabasePath string `mapstructure:"-"`
}

var defaults = map[string]any{
	"STORE_DIR":         "/media",
	"DATABASE_DIR":      "/database",
	"LOG_DIR":           "",
	"PORT":              8080,
	"METRICS_PORT":      9090,
	"METRICS_ENABLED":   true,
	"REQUEST_TIMEOUT":   "30s",
	"WATCH_ENABLED":     true,
	"DEBOUNCE_TIMEOUT":  "3s",
	"FS_TIMEOUT":        "2s",
	"SCAN_SCHEDULE":     "@every 30m",
	"SCAN_ON_STARTUP":   true,
	"SKIP_HIDDEN":       true,
	"STREAM_CHUNK_SIZE": 1 << 20,
	"FFPROBE_PATH":      "ffprobe",
	"PROBE_TIMEOUT":     "30s",
	"PROBE_WORKERS":     0,
	"MEMORY_LIMIT":      0,
	"MEMORY_RATIO":      0.85,
	"LOG_HEALTH_CHECKS": true,
	"LOG_STREAM_CHUNKS": false,
}

// bindEnv binds every mapstructure tag of Config so Unmarshal sees
// environment values even for keys without a default.
func bindEnv(v *viper.Viper) error {
	typ := reflect.TypeOf(Config{})
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		if err := v.BindEnv(tag); err != nil {
			return fmt.Errorf("bind %s: %w", tag, err)
		}
	}
	return nil
}

func newValidator() (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		spec := fl.Field().String()
		if scheduleDisabled(spec) {
			return true
		}
		_, err := cron.ParseStandard(spec)
		return err == nil
	})
	return validate, err
}

// Load reads and validates configuration from the environment without
// touching the filesystem.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := bindEnv(v); err != nil {
		return nil, err
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.StoreDir, err = filepath.Abs(cfg.StoreDir); err != nil {
		return nil, fmt.Errorf("failed to resolve store directory path: %w", err)
	}
	if cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, DatabaseFile)
	if scheduleDisabled(cfg.ScanSchedule) {
		cfg.ScanSchedule = ""
	}

	return cfg, nil
}

// LoadConfig prints the banner, loads the configuration and prepares the
// directories it names. The store directory only has to be readable; the
// database directory must be writable.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	logConfig(cfg)

	logSection("DIRECTORY SETUP")

	if err := ensureDirectory(cfg.StoreDir, "store"); err != nil {
		logging.Warn("  Store directory issue: %v", err)
	}

	if err := ensureDirectory(cfg.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	return cfg, nil
}

func logConfig(cfg *Config) {
	logSection("CONFIGURATION")

	schedule := cfg.ScanSchedule
	if schedule == "" {
		schedule = "(disabled)"
	}
	probeWorkers := "auto"
	if cfg.ProbeWorkers > 0 {
		probeWorkers = fmt.Sprint(cfg.ProbeWorkers)
	}

	logging.Info("  STORE_DIR:           %s", cfg.StoreDir)
	logging.Info("  DATABASE_DIR:        %s", cfg.DatabaseDir)
	logging.Info("  LOG_DIR:             %s", orNone(cfg.LogDir))
	logging.Info("  PORT:                %d", cfg.Port)
	logging.Info("  METRICS_PORT:        %d", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  REQUEST_TIMEOUT:     %v", cfg.RequestTimeout)
	logging.Info("  WATCH_ENABLED:       %v", cfg.WatchEnabled)
	logging.Info("  DEBOUNCE_TIMEOUT:    %v", cfg.DebounceTimeout)
	logging.Info("  FS_TIMEOUT:          %v", cfg.FSTimeout)
	logging.Info("  SCAN_SCHEDULE:       %s", schedule)
	logging.Info("  SCAN_ON_STARTUP:     %v", cfg.ScanOnStartup)
	logging.Info("  SKIP_HIDDEN:         %v", cfg.SkipHidden)
	logging.Info("  STREAM_CHUNK_SIZE:   %s", humanize.IBytes(uint64(cfg.StreamChunkSize)))
	logging.Info("  FFPROBE_PATH:        %s", cfg.FFProbePath)
	logging.Info("  PROBE_TIMEOUT:       %v", cfg.ProbeTimeout)
	logging.Info("  PROBE_WORKERS:       %s", probeWorkers)
	if cfg.MemoryLimit > 0 {
		logging.Info("  MEMORY_LIMIT:        %s (ratio %.2f)", humanize.IBytes(uint64(cfg.MemoryLimit)), cfg.MemoryRatio)
	}
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

// scheduleDisabled reports whether spec turns scheduled passes off.
func scheduleDisabled(spec string) bool {
	return spec == "" || strings.EqualFold(spec, "off")
}

func orNone(s string) string {
	if s == "" {
		return "(stdout only)"
	}
	return s
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", path)
	}

	logging.Debug("    [OK] Directory exists")

	if name == "store" && logging.IsDebugEnabled() {
		if entries, err := os.ReadDir(path); err == nil {
			var files, dirs int
			for _, e := range entries {
				if e.IsDir() {
					dirs++
				} else {
					files++
				}
			}
			logging.Debug("    Contents: %d catalogs, %d loose files (top level)", dirs, files)
		}
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
