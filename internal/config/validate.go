package config

import (
	"errors"
	"fmt"
	"strings"
)

var journalModes = map[string]struct{}{
	"DELETE":   {},
	"TRUNCATE": {},
	"PERSIST":  {},
	"MEMORY":   {},
	"WAL":      {},
	"OFF":      {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DBPath) == "" {
		return errors.New("paths.db_path must be set")
	}
	if strings.TrimSpace(c.Paths.IngestsDir) == "" {
		return errors.New("paths.ingests_dir must be set")
	}
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.BusyTimeoutMS <= 0 {
		return errors.New("database.busy_timeout_ms must be positive")
	}
	if _, ok := journalModes[c.Database.JournalMode]; !ok {
		return fmt.Errorf("database.journal_mode %q is not a SQLite journal mode", c.Database.JournalMode)
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if err := ensurePositiveMap(map[string]int{
		"workers.poll_interval_seconds":      c.Workers.PollIntervalSeconds,
		"workers.backoff_max_seconds":        c.Workers.BackoffMaxSeconds,
		"workers.conversion_timeout_seconds": c.Workers.ConversionTimeoutSeconds,
		"workers.default_sheet":              c.Workers.DefaultSheet,
	}); err != nil {
		return err
	}
	if c.Workers.BackoffMaxSeconds < c.Workers.PollIntervalSeconds {
		return errors.New("workers.backoff_max_seconds must be at least workers.poll_interval_seconds")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
