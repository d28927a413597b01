package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxPollInterval bounds the reminder poll interval. The reminder window is
// one hour wide, so polling at most every 30 minutes sees each appointment
// at least once inside it.
const (
	MaxPollInterval     = 30 * time.Minute
	DefaultPollInterval = 15 * time.Minute
)

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ReminderConfig controls background reminder generation.
type ReminderConfig struct {
	// PollInterval is how often reminders are regenerated for the
	// logged-in user while the application is open.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// Location is the IANA zone appointment dates and times are written in.
	// Empty means the local zone of the machine.
	Location string `mapstructure:"location" yaml:"location"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// MailConfig holds the optional email delivery settings for reminders.
// The password is kept in the system keyring, not here.
type MailConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	SMTPHost    string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort    string `mapstructure:"smtp_port" yaml:"smtp_port"`
	IMAPHost    string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort    string `mapstructure:"imap_port" yaml:"imap_port"`
	Username    string `mapstructure:"username" yaml:"username"`
	From        string `mapstructure:"from" yaml:"from"`
	TLS         bool   `mapstructure:"tls" yaml:"tls"`
	SentMailbox string `mapstructure:"sent_mailbox" yaml:"sent_mailbox"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database  DatabaseConfig `mapstructure:"database" yaml:"database"`
	Reminders ReminderConfig `mapstructure:"reminders" yaml:"reminders"`
	Log       LogConfig      `mapstructure:"log" yaml:"log"`
	Mail      MailConfig     `mapstructure:"mail" yaml:"mail"`
}

// ConfigDir returns ~/.config/citas, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "citas")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/citas/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := ConfigDir()
	v.SetDefault("database.path", filepath.Join(dir, "citas_medicas.db"))
	v.SetDefault("reminders.poll_interval", "15m")
	v.SetDefault("reminders.location", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "citas.log"))
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", "465")
	v.SetDefault("mail.imap_host", "")
	v.SetDefault("mail.imap_port", "993")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.tls", true)
	v.SetDefault("mail.sent_mailbox", "Sent")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values can be overridden with CITAS_* environment variables
// (e.g. CITAS_DATABASE_PATH). A missing file is not an error.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("citas")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	switch {
	case cfg.Reminders.PollInterval <= 0:
		cfg.Reminders.PollInterval = DefaultPollInterval
	case cfg.Reminders.PollInterval > MaxPollInterval:
		cfg.Reminders.PollInterval = MaxPollInterval
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Location resolves Reminders.Location.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Reminders.Location == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Reminders.Location)
	if err != nil {
		return nil, fmt.Errorf("loading location %q: %w", c.Reminders.Location, err)
	}
	return loc, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database.path", cfg.Database.Path)
	v.Set("reminders.poll_interval", cfg.Reminders.PollInterval.String())
	v.Set("reminders.location", cfg.Reminders.Location)
	v.Set("log", cfg.Log)
	v.Set("mail", cfg.Mail)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
