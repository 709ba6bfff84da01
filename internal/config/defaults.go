package config

import "reelpack/internal/encoders"

const (
	defaultConfigPath       = "~/.config/reelpack/config.toml"
	defaultLogDir           = "~/.local/share/reelpack/logs"
	defaultHistoryDB        = "~/.local/share/reelpack/history.db"
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultEncoderFamily    = "hevc"
	defaultEncoderHardware  = "none"
	defaultOutputType       = "original"
	defaultQualityLevel     = 9
	defaultWindowBefore     = 5
	defaultWindowAfter      = 5
	defaultExtractSeconds   = 15
	defaultHashPrefixBytes  = 2 << 20
	defaultLockRetryMillis  = 100
	defaultStaleAfterHours  = 24
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultCacheDir("scratch"),
			PreviewDir: defaultCacheDir("preview"),
			LogDir:     defaultLogDir,
			HistoryDB:  defaultHistoryDB,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		Encoder: Encoder{
			Family:    defaultEncoderFamily,
			Hardware:  defaultEncoderHardware,
			Libx265:   defaultQuality(encoders.Libx265),
			HEVCAMF:   defaultQuality(encoders.HEVCAMF),
			HEVCNVENC: defaultQuality(encoders.HEVCNVENC),
			LibSVTAV1: defaultQuality(encoders.LibSVTAV1),
			AV1AMF:    defaultQuality(encoders.AV1AMF),
			AV1NVENC:  defaultQuality(encoders.AV1NVENC),
		},
		Output: Output{
			Type:         defaultOutputType,
			QualityLevel: defaultQualityLevel,
		},
		Preview: Preview{
			WindowBefore:    defaultWindowBefore,
			WindowAfter:     defaultWindowAfter,
			ExtractSeconds:  defaultExtractSeconds,
			HashPrefixBytes: defaultHashPrefixBytes,
			LockRetryMillis: defaultLockRetryMillis,
		},
		Scratch: Scratch{
			StaleAfterHours: defaultStaleAfterHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultQuality(id encoders.ID) EncoderQuality {
	spec, _ := encoders.Lookup(id)
	return EncoderQuality{CRF: spec.DefaultQuality, Preset: spec.DefaultPreset}
}
