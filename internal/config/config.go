// Package config loads the tool configuration: the two schema sources to
// compare, apply behavior, and logging. Credential fields support
// ${ENV:...}, ${VAULT:path#key} and ${AWS_SM:name} secret references so
// passwords stay out of config files.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.mydiff/mydiff.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version int          `yaml:"version"`
	Old     SourceConfig `yaml:"old"`
	New     SourceConfig `yaml:"new"`
	Apply   ApplyConfig  `yaml:"apply,omitempty"`
	Logging LogConfig    `yaml:"logging,omitempty"`
}

// SourceConfig names one schema source: a mysql://, postgres:// or
// sqlite:// DSN, a .sql DDL script, or a .yaml snapshot. A separate
// Password field, when set, is resolved and injected into the DSN so the
// source line itself can stay secret-free.
type SourceConfig struct {
	Source   string `yaml:"source"`
	Password string `yaml:"password,omitempty"`
}

// ApplyConfig defines statement execution behavior.
type ApplyConfig struct {
	JournalPath string `yaml:"journal_path,omitempty"` // default ~/.mydiff/journal.yaml
	Review      bool   `yaml:"review,omitempty"`       // interactive statement review before executing
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // default ~/.mydiff/logs/
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.Apply.JournalPath == "" {
		c.Apply.JournalPath = ExpandHome("~/.mydiff/journal.yaml")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.mydiff/logs/")
	}
}

func (c *Config) resolveSecrets() error {
	if err := c.Old.resolve(); err != nil {
		return fmt.Errorf("old source: %w", err)
	}
	if err := c.New.resolve(); err != nil {
		return fmt.Errorf("new source: %w", err)
	}
	return nil
}

func (s *SourceConfig) resolve() error {
	var err error
	s.Source, err = ResolveValue(s.Source)
	if err != nil {
		return err
	}
	s.Password, err = ResolveValue(s.Password)
	if err != nil {
		return err
	}
	if s.Password != "" {
		s.Source, err = injectPassword(s.Source, s.Password)
		if err != nil {
			return err
		}
		s.Password = ""
	}
	return nil
}

// injectPassword sets the userinfo password on a DSN-style source. File
// sources have no credentials to carry.
func injectPassword(source, password string) (string, error) {
	if !strings.Contains(source, "://") {
		return "", fmt.Errorf("password set for file source %q", source)
	}
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parsing source URL: %w", err)
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, password)
	return u.String(), nil
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
