package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeEncoder()
	c.normalizeOutput()
	c.normalizePreview()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultCacheDir("scratch")
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PreviewDir) == "" {
		c.Paths.PreviewDir = defaultCacheDir("preview")
	}
	if c.Paths.PreviewDir, err = expandPath(c.Paths.PreviewDir); err != nil {
		return fmt.Errorf("paths.preview_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if value, ok := os.LookupEnv("REELPACK_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpeg = value
	}
	if value, ok := os.LookupEnv("REELPACK_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFprobe = value
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Family = strings.ToLower(strings.TrimSpace(c.Encoder.Family))
	if c.Encoder.Family == "" {
		c.Encoder.Family = defaultEncoderFamily
	}
	c.Encoder.Hardware = strings.ToLower(strings.TrimSpace(c.Encoder.Hardware))
	if c.Encoder.Hardware == "" {
		c.Encoder.Hardware = defaultEncoderHardware
	}
}

func (c *Config) normalizeOutput() {
	c.Output.Type = strings.ToLower(strings.TrimSpace(c.Output.Type))
	switch c.Output.Type {
	case "":
		c.Output.Type = defaultOutputType
	case "jpg":
		c.Output.Type = "jpeg"
	}
}

func (c *Config) normalizePreview() {
	if c.Preview.ExtractSeconds == 0 {
		c.Preview.ExtractSeconds = defaultExtractSeconds
	}
	if c.Preview.HashPrefixBytes == 0 {
		c.Preview.HashPrefixBytes = defaultHashPrefixBytes
	}
	if c.Preview.LockRetryMillis == 0 {
		c.Preview.LockRetryMillis = defaultLockRetryMillis
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
