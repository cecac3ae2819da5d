package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeHashing()
	c.normalizeStages()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ArchiveRoot, err = expandPath(c.Paths.ArchiveRoot); err != nil {
		return fmt.Errorf("paths.archive_root: %w", err)
	}
	if c.Paths.QuarantineRoot, err = expandPath(c.Paths.QuarantineRoot); err != nil {
		return fmt.Errorf("paths.quarantine_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeHashing() {
	c.Hashing.Algorithm = strings.ToLower(strings.TrimSpace(c.Hashing.Algorithm))
	if c.Hashing.Algorithm == "" {
		c.Hashing.Algorithm = defaultHashAlgorithm
	}
	if c.Hashing.ChunkSizeMiB <= 0 {
		c.Hashing.ChunkSizeMiB = defaultChunkSizeMiB
	}
}

func (c *Config) normalizeStages() {
	if c.Verify.BatchLimit <= 0 {
		c.Verify.BatchLimit = defaultVerifyLimit
	}
	if c.Verify.Workers <= 0 {
		c.Verify.Workers = defaultVerifyWorkers
	}
	if c.Sweep.BatchLimit <= 0 {
		c.Sweep.BatchLimit = defaultSweepLimit
	}
	c.Sweep.Scope = strings.ToLower(strings.TrimSpace(c.Sweep.Scope))
	if c.Sweep.Scope == "" {
		c.Sweep.Scope = defaultSweepScope
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
