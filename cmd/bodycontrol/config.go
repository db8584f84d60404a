package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/BodyControl/internal/config"
	"github.com/BTreeMap/BodyControl/internal/store"
	"github.com/BTreeMap/BodyControl/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDirName is created under the user's home directory.
	DefaultStateDirName = ".bodycontrol"
	// DefaultDBFileName is the SQLite file used when no DSN is configured.
	DefaultDBFileName = "bodycontrol.db"
)

// Config holds environment configuration.
type Config struct {
	StateDir  string
	DBDSN     string
	APIAddr   string
	OpenAIKey string
	WebDir    string
	Seed      uint64
	QR        bool
}

// rootOptions holds persistent flag values.
type rootOptions struct {
	configPath string
	seed       uint64
	stateDir   string
	dbDSN      string
	logLevel   string
	logFormat  string
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultStateDirName
	}
	return filepath.Join(home, DefaultStateDirName)
}

// loadEnvironmentConfig loads configuration from environment variables and
// an optional .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Config{
		StateDir:  util.StringEnv(defaultStateDir(), "BODYCONTROL_STATE_DIR"),
		DBDSN:     util.StringEnv("", "BODYCONTROL_DB_DSN", "DATABASE_URL"),
		APIAddr:   util.StringEnv("", "API_ADDR"),
		OpenAIKey: util.StringEnv("", "OPENAI_API_KEY"),
		WebDir:    util.StringEnv("", "BODYCONTROL_WEB_DIR"),
		Seed:      util.ParseUint64Env("BODYCONTROL_SEED", 0),
		QR:        util.ParseBoolEnv("BODYCONTROL_QR", false),
	}

	slog.Debug("environment variables loaded",
		"BODYCONTROL_STATE_DIR", cfg.StateDir,
		"DB_DSN_SET", cfg.DBDSN != "",
		"API_ADDR", cfg.APIAddr,
		"OPENAI_API_KEY_SET", cfg.OpenAIKey != "",
		"BODYCONTROL_WEB_DIR", cfg.WebDir,
		"BODYCONTROL_SEED", cfg.Seed)
	return cfg
}

// initializeLogger installs the default slog handler.
func initializeLogger(w io.Writer, level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// tuning loads --config or the built-in defaults.
func (o *rootOptions) tuning() (*config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	slog.Info("tuning loaded", "path", o.configPath)
	return cfg, nil
}

// dsn resolves the store DSN, defaulting to SQLite in the state directory.
func (o *rootOptions) dsn() string {
	if o.dbDSN != "" {
		return o.dbDSN
	}
	return filepath.Join(o.stateDir, DefaultDBFileName)
}

// openStore opens the configured session store, creating the state
// directory for a SQLite file.
func (o *rootOptions) openStore() (store.Store, error) {
	dsn := o.dsn()
	if store.DetectDSNType(dsn) == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	st, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
