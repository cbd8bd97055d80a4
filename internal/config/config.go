package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "CHESSLINK_"

type Role string

const (
	RoleHost Role = "host"
	RoleJoin Role = "join"
)

type Color string

const (
	ColorWhite  Color = "white"
	ColorBlack  Color = "black"
	ColorRandom Color = "random"
)

// White resolves the host colour. Random draws one bit from crypto/rand.
func (c Color) White() (bool, error) {
	switch c {
	case ColorWhite, "":
		return true, nil
	case ColorBlack:
		return false, nil
	case ColorRandom:
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			return false, fmt.Errorf("random colour: %w", err)
		}
		return b[0]&1 == 0, nil
	default:
		return false, fmt.Errorf("unknown colour %q", string(c))
	}
}

type AppConfig struct {
	Role  Role   `yaml:"role"`
	Addr  string `yaml:"addr"`
	Name  string `yaml:"name"`
	FEN   string `yaml:"fen"`
	Color Color  `yaml:"color"`

	// Clock fields are exchanged in Start but not enforced.
	Time uint32 `yaml:"time"`
	Inc  uint32 `yaml:"inc"`

	PollInterval time.Duration `yaml:"poll_interval"`
	TickInterval time.Duration `yaml:"tick_interval"`
	AckTimeout   time.Duration `yaml:"ack_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	RedisURL     string `yaml:"redis_url"`
	DatabaseURL  string `yaml:"database_url"`
	NotifyURL    string `yaml:"notify_url"`
	NotifyDryRun bool   `yaml:"notify_dryrun"`
	SpectateAddr string `yaml:"spectate_addr"`
}

func Default() *AppConfig {
	return &AppConfig{
		Role:         RoleHost,
		Addr:         "127.0.0.1:22022",
		Name:         "anonymous",
		Color:        ColorWhite,
		PollInterval: time.Second,
		TickInterval: 16 * time.Millisecond,
		AckTimeout:   30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CHESSLINK_CONFIG, then CHESSLINK_* environment variables.
func Load() (*AppConfig, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(envPrefix + "CONFIG")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func (c *AppConfig) applyEnv() error {
	if v := env("ROLE"); v != "" {
		c.Role = Role(strings.ToLower(v))
	}
	if v := env("ADDR"); v != "" {
		c.Addr = v
	}
	if v := env("NAME"); v != "" {
		c.Name = v
	}
	if v := env("FEN"); v != "" {
		c.FEN = v
	}
	if v := env("COLOR"); v != "" {
		c.Color = Color(strings.ToLower(v))
	}

	for key, dst := range map[string]*uint32{"TIME": &c.Time, "INC": &c.Inc} {
		if v := env(key); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = uint32(n)
		}
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL": &c.PollInterval,
		"TICK_INTERVAL": &c.TickInterval,
		"ACK_TIMEOUT":   &c.AckTimeout,
		"WRITE_TIMEOUT": &c.WriteTimeout,
	}
	for key, dst := range durations {
		if v := env(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}

	c.RedisURL = firstNonEmpty(env("REDIS_URL"), c.RedisURL)
	c.DatabaseURL = firstNonEmpty(env("DATABASE_URL"), c.DatabaseURL)
	c.NotifyURL = firstNonEmpty(env("NOTIFY_URL"), c.NotifyURL)
	if v := env("NOTIFY_DRYRUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sNOTIFY_DRYRUN: %w", envPrefix, err)
		}
		c.NotifyDryRun = b
	}
	c.SpectateAddr = firstNonEmpty(env("SPECTATE_ADDR"), c.SpectateAddr)
	return nil
}

func (c *AppConfig) Validate() error {
	switch c.Role {
	case RoleHost, RoleJoin:
	default:
		return fmt.Errorf("role must be host or join, got %q", c.Role)
	}
	switch c.Color {
	case ColorWhite, ColorBlack, ColorRandom:
	default:
		return fmt.Errorf("color must be white, black or random, got %q", c.Color)
	}
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.TickInterval <= 0 {
		return errors.New("tick interval must be positive")
	}
	if c.AckTimeout < 0 {
		return errors.New("ack timeout must not be negative")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
