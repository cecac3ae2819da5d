package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateHashing(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ArchiveRoot) == "" {
		return errors.New("paths.archive_root must be set")
	}
	if strings.TrimSpace(c.Paths.QuarantineRoot) == "" {
		return errors.New("paths.quarantine_root must be set")
	}
	if c.Paths.QuarantineRoot == c.Paths.ArchiveRoot {
		return errors.New("paths.quarantine_root must differ from paths.archive_root")
	}
	if strings.HasPrefix(c.Paths.QuarantineRoot+"/", c.Paths.ArchiveRoot+"/") {
		return errors.New("paths.quarantine_root must not live inside paths.archive_root")
	}
	return nil
}

func (c *Config) validateHashing() error {
	if c.Hashing.Algorithm != "sha256" {
		return fmt.Errorf("hashing.algorithm: unsupported value %q (only sha256 is supported)", c.Hashing.Algorithm)
	}
	if c.Hashing.ChunkSizeMiB > 256 {
		return errors.New("hashing.chunk_size_mib must be 256 or less")
	}
	return nil
}

func (c *Config) validateStages() error {
	if c.Verify.Workers > 32 {
		return errors.New("verify.workers must be 32 or less")
	}
	switch c.Sweep.Scope {
	case "year", "global":
	default:
		return fmt.Errorf("sweep.scope: unsupported value %q (use year or global)", c.Sweep.Scope)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
