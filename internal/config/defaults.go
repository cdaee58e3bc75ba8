package config

const (
	defaultConfigPath        = "~/.config/sieve/config.toml"
	defaultStorePath         = "~/.local/share/sieve/chromaprints.csv"
	defaultCandidatesPath    = "~/.local/share/sieve/candidates.csv"
	defaultReviewDir         = "~/.local/share/sieve/review"
	defaultLogDir            = "~/.local/share/sieve/logs"
	defaultFpcalcBinary      = "fpcalc"
	defaultFFprobeBinary     = "ffprobe"
	defaultAlgorithm         = 4
	defaultLengthSeconds     = 30
	defaultFpcalcTimeout     = 120
	defaultSignatureLength   = 3059
	defaultIngestWorkers     = 1
	defaultMatchThreshold    = 70
	defaultDurationTolerance = 120
	defaultBatchSize         = 250
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Store:      defaultStorePath,
			Candidates: defaultCandidatesPath,
			ReviewDir:  defaultReviewDir,
			LogDir:     defaultLogDir,
		},
		Fingerprint: Fingerprint{
			FpcalcBinary:    defaultFpcalcBinary,
			Algorithm:       defaultAlgorithm,
			LengthSeconds:   defaultLengthSeconds,
			Overlap:         true,
			TimeoutSeconds:  defaultFpcalcTimeout,
			SignatureLength: defaultSignatureLength,
			Workers:         defaultIngestWorkers,
			ReuseIdentity:   true,
		},
		Matching: Matching{
			Threshold:         defaultMatchThreshold,
			DurationTolerance: defaultDurationTolerance,
			BatchSize:         defaultBatchSize,
		},
		Review: Review{
			FFprobeBinary: defaultFFprobeBinary,
			Metadata:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
