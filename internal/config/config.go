package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mori-agent/mori/internal/domain"
)

// Build-time variables injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// EnvPrefix is prepended to every environment key, e.g. MORI_REMOTE_HOST.
const EnvPrefix = "MORI"

// Config holds everything a provisioning run reads from its environment.
type Config struct {
	// RemoteHost is the peer to replicate onto. Empty disables remote.
	RemoteHost string `mapstructure:"remote_host"`

	// RemoteUser is the login on the peer.
	RemoteUser string `mapstructure:"remote_user"`

	RemotePort           int           `mapstructure:"remote_port"`
	SSHConnectTimeout    time.Duration `mapstructure:"ssh_connect_timeout"`
	SSHKeepaliveInterval time.Duration `mapstructure:"ssh_keepalive_interval"`
	SSHKeyDir            string        `mapstructure:"ssh_key_dir"`

	// Host and Port are where the inference daemon listens.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// ServiceBinary is the daemon executable looked up on PATH.
	ServiceBinary string `mapstructure:"service_binary"`

	// Model overrides the selector's choice when set.
	Model string `mapstructure:"model"`

	// PullModel fetches the chosen model once the daemon is running.
	PullModel bool `mapstructure:"pull_model"`

	// MinFreeDiskGB is the headroom required in the home directory.
	MinFreeDiskGB int `mapstructure:"min_free_disk_gb"`

	// RecordDir holds the inspection records and the daemon's output.
	RecordDir string `mapstructure:"record_dir"`

	// LogDir is the directory for log files.
	LogDir string `mapstructure:"log_dir"`

	Debug bool `mapstructure:"debug"`

	// Hop is non-zero when this run was started by another mori.
	Hop int `mapstructure:"hop"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	cache, err := os.UserCacheDir()
	if err != nil {
		cache = os.TempDir()
	}
	return &Config{
		RemoteUser:           os.Getenv("USER"),
		RemotePort:           domain.DefaultSSHPort,
		SSHConnectTimeout:    10 * time.Second,
		SSHKeepaliveInterval: 15 * time.Second,
		SSHKeyDir:            filepath.Join(home, ".ssh"),
		Host:                 "127.0.0.1",
		Port:                 11434,
		ServiceBinary:        "ollama",
		PullModel:            true,
		MinFreeDiskGB:        10,
		RecordDir:            filepath.Join(os.TempDir(), "mori"),
		LogDir:               filepath.Join(cache, "mori", "logs"),
	}
}

// Load overlays an optional YAML file and MORI_* environment variables on
// top of DefaultConfig.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.RemoteHost = strings.TrimSpace(cfg.RemoteHost)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, domain.ConfigurationError{Field: "PORT", Reason: fmt.Sprintf("%d is not a valid port", cfg.Port)}
	}
	if cfg.RemotePort <= 0 || cfg.RemotePort > 65535 {
		return nil, domain.ConfigurationError{Field: "REMOTE_PORT", Reason: fmt.Sprintf("%d is not a valid port", cfg.RemotePort)}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("remote_host", d.RemoteHost)
	v.SetDefault("remote_user", d.RemoteUser)
	v.SetDefault("remote_port", d.RemotePort)
	v.SetDefault("ssh_connect_timeout", d.SSHConnectTimeout)
	v.SetDefault("ssh_keepalive_interval", d.SSHKeepaliveInterval)
	v.SetDefault("ssh_key_dir", d.SSHKeyDir)
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("service_binary", d.ServiceBinary)
	v.SetDefault("model", d.Model)
	v.SetDefault("pull_model", d.PullModel)
	v.SetDefault("min_free_disk_gb", d.MinFreeDiskGB)
	v.SetDefault("record_dir", d.RecordDir)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("hop", d.Hop)
}

// ServiceAddr is host:port of the inference daemon.
func (c *Config) ServiceAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL is the daemon's HTTP root.
func (c *Config) BaseURL() string {
	return "http://" + c.ServiceAddr()
}

// HasRemote reports whether a peer is configured at all.
func (c *Config) HasRemote() bool {
	return c.RemoteHost != ""
}

// ValidateRemote checks the parameters an explicit remote run needs.
func (c *Config) ValidateRemote() error {
	if c.RemoteHost == "" {
		return domain.ConfigurationError{Field: EnvPrefix + "_REMOTE_HOST", Reason: "required for remote provisioning"}
	}
	if c.RemoteUser == "" {
		return domain.ConfigurationError{Field: EnvPrefix + "_REMOTE_USER", Reason: "required for remote provisioning"}
	}
	return nil
}

// RemoteTarget builds the peer description.
func (c *Config) RemoteTarget() domain.RemoteTarget {
	return domain.RemoteTarget{
		Host:              c.RemoteHost,
		User:              c.RemoteUser,
		Port:              c.RemotePort,
		ConnectTimeout:    c.SSHConnectTimeout,
		KeepaliveInterval: c.SSHKeepaliveInterval,
	}
}

// NewLogger creates a JSON logger writing to <LogDir>/<name>.log. When the
// file cannot be opened it falls back to text on stderr.
func NewLogger(cfg *Config, name string) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	file, err := openLogFile(cfg.LogDir, name)
	if err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		logger.Warn("file logging disabled", "err", err)
		return logger
	}
	return slog.New(slog.NewJSONHandler(file, opts))
}

func openLogFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logPath := filepath.Join(dir, name+".log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}
	return file, nil
}
