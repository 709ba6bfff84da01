package config

import (
	"errors"
	"fmt"

	"reelpack/internal/encoders"
	"reelpack/internal/media/imagefmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validatePreview(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Scratch.StaleAfterHours < 0 {
		return errors.New("scratch.stale_after_hours must be non-negative")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if _, err := encoders.ParseFamily(c.Encoder.Family); err != nil {
		return fmt.Errorf("encoder.family: %w", err)
	}
	if _, err := encoders.ParseBackend(c.Encoder.Hardware); err != nil {
		return fmt.Errorf("encoder.hardware: %w", err)
	}
	for _, spec := range encoders.Specs() {
		q := c.Encoder.quality(spec.ID)
		if err := spec.Validate(q.CRF, q.Preset); err != nil {
			return fmt.Errorf("encoder.%s: %w", spec.ID, err)
		}
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.Type != defaultOutputType {
		if _, err := imagefmt.Parse(c.Output.Type); err != nil {
			return fmt.Errorf("output.type must be original, jpeg, png, or webp: %w", err)
		}
	}
	if c.Output.QualityLevel < 0 || c.Output.QualityLevel > encoders.MaxImageQuality {
		return fmt.Errorf("output.quality_level must be between 0 and %d", encoders.MaxImageQuality)
	}
	return nil
}

func (c *Config) validatePreview() error {
	if c.Preview.WindowBefore < 0 || c.Preview.WindowAfter < 0 {
		return errors.New("preview window sizes must be non-negative")
	}
	if c.Preview.ExtractSeconds <= 0 {
		return errors.New("preview.extract_seconds must be positive")
	}
	if c.Preview.ExtractSeconds <= c.Preview.WindowBefore {
		return errors.New("preview.extract_seconds must exceed preview.window_before")
	}
	if c.Preview.HashPrefixBytes <= 0 {
		return errors.New("preview.hash_prefix_bytes must be positive")
	}
	if c.Preview.LockRetryMillis <= 0 {
		return errors.New("preview.lock_retry_ms must be positive")
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
