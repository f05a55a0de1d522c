package config

const (
	defaultStateFile                = "~/.local/share/evenkeel/state.json"
	defaultLogDir                   = "~/.local/share/evenkeel/logs"
	defaultHistoryDB                = "~/.local/share/evenkeel/history.db"
	defaultTargetPeakDBFS           = -0.1
	defaultMinBitrate               = "192k"
	defaultMinFileSizeMB            = 50
	defaultWorkers                  = 3
	defaultFFmpegThreads            = 4
	defaultSubprocessTimeoutSeconds = 3600
	defaultSettleSeconds            = 5
	defaultPollSeconds              = 3
	defaultStableChecks             = 2
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateFile: defaultStateFile,
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Normalize: Normalize{
			TargetPeakDBFS: defaultTargetPeakDBFS,
			MinBitrate:     defaultMinBitrate,
			Faststart:      true,
			SkipSamples:    true,
			MinFileSizeMB:  defaultMinFileSizeMB,
		},
		Scheduler: Scheduler{
			Workers:                  defaultWorkers,
			FFmpegThreads:            defaultFFmpegThreads,
			SubprocessTimeoutSeconds: defaultSubprocessTimeoutSeconds,
		},
		Watcher: Watcher{
			SettleSeconds: defaultSettleSeconds,
			PollSeconds:   defaultPollSeconds,
			StableChecks:  defaultStableChecks,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
