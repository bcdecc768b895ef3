package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database location configuration.
type Paths struct {
	RepoRoot   string `toml:"repo_root"`
	DataDir    string `toml:"data_dir"`
	DBPath     string `toml:"db_path"`
	IngestsDir string `toml:"ingests_dir"`
	UploadDir  string `toml:"upload_dir"`
	LogDir     string `toml:"log_dir"`
}

// Database contains SQLite connection settings for the shared job table.
type Database struct {
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	JournalMode   string `toml:"journal_mode"`
}

// Workers contains worker loop timing and converter invocation settings.
type Workers struct {
	PollIntervalSeconds      int    `toml:"poll_interval_seconds"`
	BackoffMaxSeconds        int    `toml:"backoff_max_seconds"`
	ConverterBin             string `toml:"converter_bin"`
	ConversionTimeoutSeconds int    `toml:"conversion_timeout_seconds"`
	DefaultSheet             int    `toml:"default_sheet"`
}

// Resolver contains configuration for uploaded-file path resolution.
type Resolver struct {
	// LegacyRoots are historical container layouts consulted after the
	// current-layout candidates. An empty list disables them.
	LegacyRoots []string `toml:"legacy_roots"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Conversions    bool   `toml:"conversions"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for sheetmill.
//
// Configuration sections by subsystem:
//   - Paths: repository root, data/ingests/uploads directories, database file
//   - Database: SQLite busy timeout and journal mode
//   - Workers: poll interval, backoff ceiling, converter subprocess settings
//   - Resolver: legacy layout roots for uploaded-file resolution
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
//
// Environment variables from the historical worker deployment override file
// values during normalization; see normalize.go for the recognized names.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Workers       Workers       `toml:"workers"`
	Resolver      Resolver      `toml:"resolver"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sheetmill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/sheetmill/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sheetmill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation. Creation
// races are tolerated; the only failure is a directory that is still absent
// afterwards.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		filepath.Dir(c.Paths.DBPath),
		c.Paths.IngestsDir,
		c.Paths.UploadDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := ensureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

func ensureDir(dir string) error {
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		return nil
	}
	if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
		return nil
	}
	return fmt.Errorf("create directory %q: %w", dir, err)
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "sheetmill.sock")
}

// OutputPathFor returns the artifact location for a job id.
func (c *Config) OutputPathFor(jobID int64) string {
	return filepath.Join(c.Paths.IngestsDir, fmt.Sprintf("%d.jsonl", jobID))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
