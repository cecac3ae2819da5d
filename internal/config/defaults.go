package config

const (
	defaultArchiveRoot    = "~/archive"
	defaultQuarantineRoot = "~/archive-quarantine"
	defaultStateDir       = "~/.local/share/keeper/state"
	defaultLogDir         = "~/.local/share/keeper/logs"
	defaultHashAlgorithm  = "sha256"
	defaultChunkSizeMiB   = 8
	defaultVerifyLimit    = 1000
	defaultVerifyWorkers  = 1
	defaultSweepLimit     = 500
	defaultSweepScope     = "year"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArchiveRoot:    defaultArchiveRoot,
			QuarantineRoot: defaultQuarantineRoot,
			StateDir:       defaultStateDir,
			LogDir:         defaultLogDir,
		},
		Hashing: Hashing{
			Algorithm:    defaultHashAlgorithm,
			ChunkSizeMiB: defaultChunkSizeMiB,
		},
		Verify: Verify{
			BatchLimit: defaultVerifyLimit,
			Workers:    defaultVerifyWorkers,
		},
		Sweep: Sweep{
			BatchLimit: defaultSweepLimit,
			Scope:      defaultSweepScope,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
