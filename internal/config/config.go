package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Sessions SessionsConfig `yaml:"sessions"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// sqlite3 or postgres
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type EngineConfig struct {
	TimerDuration time.Duration `yaml:"timer_duration"`
	TickInterval  time.Duration `yaml:"tick_interval"`
}

type SessionsConfig struct {
	StaleAfter    time.Duration `yaml:"stale_after"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// Suggested to clients; the server only checks StaleAfter
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SubscriberBuffer  int           `yaml:"subscriber_buffer"`
	// Pairing attempts per second per client address
	PairRate  float64 `yaml:"pair_rate"`
	PairBurst int     `yaml:"pair_burst"`
}

// ArchiveConfig points at an S3 compatible bucket. An empty bucket disables archiving.
type ArchiveConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "tourney.db?_journal_mode=WAL",
		},
		Engine: EngineConfig{
			TimerDuration: 150 * time.Second,
			TickInterval:  time.Second,
		},
		Sessions: SessionsConfig{
			StaleAfter:        2 * time.Minute,
			SweepInterval:     30 * time.Second,
			HeartbeatInterval: 30 * time.Second,
			SubscriberBuffer:  64,
			PairRate:          1,
			PairBurst:         5,
		},
		Archive: ArchiveConfig{
			Prefix: "tournaments/",
			Region: "auto",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig starts from the defaults, applies the YAML file if it exists and
// then any environment overrides.
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("ARCHIVE_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("ARCHIVE_ACCESS_KEY_ID"); v != "" {
		cfg.Archive.AccessKeyID = v
	}
	if v := os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"); v != "" {
		cfg.Archive.SecretAccessKey = v
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"TIMER_DURATION", &cfg.Engine.TimerDuration},
		{"SESSION_STALE_AFTER", &cfg.Sessions.StaleAfter},
		{"SESSION_SWEEP_INTERVAL", &cfg.Sessions.SweepInterval},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			// Plain numbers are seconds
			secs, convErr := strconv.Atoi(v)
			if convErr != nil {
				return fmt.Errorf("invalid %s value %q: %w", d.env, v, err)
			}
			parsed = time.Duration(secs) * time.Second
		}
		*d.dst = parsed
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if c.Engine.TimerDuration <= 0 {
		return errors.New("timer duration must be positive")
	}
	if c.Sessions.StaleAfter <= 0 || c.Sessions.SweepInterval <= 0 {
		return errors.New("session intervals must be positive")
	}
	if c.Archive.Bucket != "" && (c.Archive.AccessKeyID == "") != (c.Archive.SecretAccessKey == "") {
		return errors.New("archive credentials need both key id and secret")
	}
	return nil
}
