package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultReleaseAPI = "https://api.github.com/repos/fatedier/frp/releases/latest"

// Config is the panel's own configuration. Values come from defaults, then
// panel.toml, then environment variables, then command-line flags.
type Config struct {
	DataDir string `toml:"-"`

	Web  WebConfig  `toml:"web"`
	Frpc FrpcConfig `toml:"frpc"`
	Log  LogConfig  `toml:"log"`
}

type WebConfig struct {
	Listen      string   `toml:"listen"`
	SessionTTL  Duration `toml:"session_ttl"`
	UploadLimit int64    `toml:"upload_limit"`
}

type FrpcConfig struct {
	ReleaseAPI      string   `toml:"release_api"`
	DownloadTimeout Duration `toml:"download_timeout"`
	StopTimeout     Duration `toml:"stop_timeout"`
	LogTailLines    int      `toml:"log_tail_lines"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a string ("24h", "5s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: "/app/data",
		Web: WebConfig{
			Listen:      ":7500",
			SessionTTL:  Duration{24 * time.Hour},
			UploadLimit: 100 << 20,
		},
		Frpc: FrpcConfig{
			ReleaseAPI:      defaultReleaseAPI,
			DownloadTimeout: Duration{5 * time.Minute},
			StopTimeout:     Duration{5 * time.Second},
			LogTailLines:    200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds the configuration. dataDir and configPath may be empty.
func LoadConfig(dataDir, configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(cfg.DataDir, "panel.toml")
	}
	if err := cfg.loadFile(configPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WEB_PORT"); v != "" {
		host, _, err := net.SplitHostPort(c.Web.Listen)
		if err != nil {
			host = ""
		}
		c.Web.Listen = net.JoinHostPort(host, v)
	}
	if v := os.Getenv("FRPC_PANEL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data dir must not be empty")
	}
	_, port, err := net.SplitHostPort(c.Web.Listen)
	if err != nil {
		return fmt.Errorf("web.listen %q: %w", c.Web.Listen, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("web.listen %q: invalid port", c.Web.Listen)
	}
	if c.Web.SessionTTL.Duration <= 0 {
		return errors.New("web.session_ttl must be positive")
	}
	if c.Web.UploadLimit <= 0 {
		return errors.New("web.upload_limit must be positive")
	}
	if c.Frpc.StopTimeout.Duration <= 0 || c.Frpc.DownloadTimeout.Duration <= 0 {
		return errors.New("frpc timeouts must be positive")
	}
	if c.Frpc.LogTailLines <= 0 {
		return errors.New("frpc.log_tail_lines must be positive")
	}
	if !strings.HasPrefix(c.Frpc.ReleaseAPI, "http://") && !strings.HasPrefix(c.Frpc.ReleaseAPI, "https://") {
		return fmt.Errorf("frpc.release_api %q: must be an http(s) URL", c.Frpc.ReleaseAPI)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q: must be text or json", c.Log.Format)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the process-wide slog logger from the log section.
func (c *Config) NewLogger() *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func (c *Config) dbPath() string { return filepath.Join(c.DataDir, "panel.db") }
func (c *Config) confDir() string { return filepath.Join(c.DataDir, "conf") }
func (c *Config) logsDir() string { return filepath.Join(c.DataDir, "logs") }
func (c *Config) frpcDir() string { return filepath.Join(c.DataDir, "frpc") }
