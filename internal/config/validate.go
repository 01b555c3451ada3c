package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn must be set when database.driver is postgres (or set DATABASE_URL)")
		}
		return nil
	default:
		return fmt.Errorf("database.driver: unsupported value %q (use sqlite or postgres)", c.Database.Driver)
	}
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.JWTSecret != "" && len(c.Server.JWTSecret) < 16 {
		return errors.New("server.jwt_secret must be at least 16 characters")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if err := ensurePositiveMap(map[string]int{
		"worker.poll_interval":        c.Worker.PollInterval,
		"worker.error_retry_interval": c.Worker.ErrorRetryInterval,
		"fal.poll_interval_seconds":   c.Fal.PollIntervalSeconds,
		"fal.timeout_seconds":         c.Fal.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Worker.HeartbeatInterval <= 0 {
		return errors.New("worker.heartbeat_interval must be positive")
	}
	if c.Worker.HeartbeatTimeout <= 0 {
		return errors.New("worker.heartbeat_timeout must be positive")
	}
	if c.Worker.HeartbeatTimeout <= c.Worker.HeartbeatInterval {
		return errors.New("worker.heartbeat_timeout must be greater than worker.heartbeat_interval")
	}
	if c.Worker.Concurrency > 16 {
		return errors.New("worker.concurrency must be at most 16")
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
