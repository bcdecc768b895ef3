package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	if err := c.normalizeWorkers(); err != nil {
		return err
	}
	if err := c.normalizeResolver(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

// normalizePaths fills the derived directory chain. The historical worker was
// configured purely through its environment, so those variable names still
// override file values here.
func (c *Config) normalizePaths() error {
	var err error

	if value, ok := lookupEnv("REPO_ROOT"); ok {
		c.Paths.RepoRoot = value
	}
	if strings.TrimSpace(c.Paths.RepoRoot) == "" {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return fmt.Errorf("resolve working directory: %w", wdErr)
		}
		c.Paths.RepoRoot = wd
	}
	if c.Paths.RepoRoot, err = expandPath(c.Paths.RepoRoot); err != nil {
		return fmt.Errorf("paths.repo_root: %w", err)
	}

	if value, ok := lookupEnv("DATA_DIR"); ok {
		c.Paths.DataDir = value
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = filepath.Join(c.Paths.RepoRoot, dataDirName)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	if value, ok := lookupEnv("DB_PATH"); ok {
		c.Paths.DBPath = value
	}
	if strings.TrimSpace(c.Paths.DBPath) == "" {
		c.Paths.DBPath = filepath.Join(c.Paths.DataDir, dbRelPath)
	}
	if c.Paths.DBPath, err = expandPath(c.Paths.DBPath); err != nil {
		return fmt.Errorf("paths.db_path: %w", err)
	}

	if value, ok := lookupEnv("INGESTS_DIR"); ok {
		c.Paths.IngestsDir = value
	}
	if strings.TrimSpace(c.Paths.IngestsDir) == "" {
		c.Paths.IngestsDir = filepath.Join(c.Paths.DataDir, ingestsDirName)
	}
	if c.Paths.IngestsDir, err = expandPath(c.Paths.IngestsDir); err != nil {
		return fmt.Errorf("paths.ingests_dir: %w", err)
	}

	if value, ok := lookupEnv("UPLOAD_DIR"); ok {
		c.Paths.UploadDir = value
	}
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		c.Paths.UploadDir = filepath.Join(c.Paths.DataDir, uploadsDirName)
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}

	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	if value, ok := lookupEnv("SQLITE_BUSY_TIMEOUT", "BUSY_TIMEOUT"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("SQLITE_BUSY_TIMEOUT %q: %w", value, err)
		}
		c.Database.BusyTimeoutMS = parsed
	}
	if c.Database.BusyTimeoutMS <= 0 {
		c.Database.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	if value, ok := lookupEnv("SQLITE_JOURNAL_MODE", "JOURNAL_MODE"); ok {
		c.Database.JournalMode = value
	}
	c.Database.JournalMode = strings.ToUpper(strings.TrimSpace(c.Database.JournalMode))
	if c.Database.JournalMode == "" {
		c.Database.JournalMode = defaultJournalMode
	}
	return nil
}

func (c *Config) normalizeWorkers() error {
	if value, ok := lookupEnv("POLL_INTERVAL"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL %q: %w", value, err)
		}
		c.Workers.PollIntervalSeconds = parsed
	}
	if value, ok := lookupEnv("WORKER_BACKOFF_MAX_SECONDS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("WORKER_BACKOFF_MAX_SECONDS %q: %w", value, err)
		}
		c.Workers.BackoffMaxSeconds = parsed
	}
	if value, ok := lookupEnv("SHEETMILL_CONVERTER"); ok {
		c.Workers.ConverterBin = value
	}
	c.Workers.ConverterBin = strings.TrimSpace(c.Workers.ConverterBin)
	if c.Workers.ConverterBin != "" && strings.ContainsRune(c.Workers.ConverterBin, os.PathSeparator) {
		expanded, err := expandPath(c.Workers.ConverterBin)
		if err != nil {
			return fmt.Errorf("workers.converter_bin: %w", err)
		}
		c.Workers.ConverterBin = expanded
	}
	if c.Workers.ConversionTimeoutSeconds <= 0 {
		c.Workers.ConversionTimeoutSeconds = defaultConversionTimeoutSeconds
	}
	if c.Workers.DefaultSheet <= 0 {
		c.Workers.DefaultSheet = defaultSheetIndex
	}
	return nil
}

func (c *Config) normalizeResolver() error {
	roots := make([]string, 0, len(c.Resolver.LegacyRoots))
	seen := make(map[string]struct{}, len(c.Resolver.LegacyRoots))
	for _, root := range c.Resolver.LegacyRoots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("resolver.legacy_roots: %w", err)
		}
		if _, exists := seen[expanded]; exists {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	c.Resolver.LegacyRoots = roots
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

// lookupEnv returns the first non-empty value among the named variables.
func lookupEnv(names ...string) (string, bool) {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}
