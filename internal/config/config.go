package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelpack/internal/encoders"
	"reelpack/internal/media/imagefmt"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	PreviewDir string `toml:"preview_dir"`
	LogDir     string `toml:"log_dir"`
	HistoryDB  string `toml:"history_db"`
}

// Tools names the external codec binaries.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// EncoderQuality holds one encoder's quality and preset on its own scale.
type EncoderQuality struct {
	CRF    int `toml:"crf"`
	Preset int `toml:"preset"`
}

// Encoder contains pack-time encoder selection.
type Encoder struct {
	Family    string         `toml:"family"`
	Hardware  string         `toml:"hardware"`
	Libx265   EncoderQuality `toml:"libx265"`
	HEVCAMF   EncoderQuality `toml:"hevc_amf"`
	HEVCNVENC EncoderQuality `toml:"hevc_nvenc"`
	LibSVTAV1 EncoderQuality `toml:"libsvtav1"`
	AV1AMF    EncoderQuality `toml:"av1_amf"`
	AV1NVENC  EncoderQuality `toml:"av1_nvenc"`
}

// Output contains unpack-time image output settings.
type Output struct {
	// Type is original, jpeg, png, or webp.
	Type         string `toml:"type"`
	WebPLossless bool   `toml:"webp_lossless"`
	QualityLevel int    `toml:"quality_level"`
}

// Preview contains preview cache tuning.
type Preview struct {
	WindowBefore    int   `toml:"window_before"`
	WindowAfter     int   `toml:"window_after"`
	ExtractSeconds  int   `toml:"extract_seconds"`
	HashPrefixBytes int64 `toml:"hash_prefix_bytes"`
	LockRetryMillis int   `toml:"lock_retry_ms"`
}

// Scratch contains scratch directory hygiene settings.
type Scratch struct {
	StaleAfterHours int `toml:"stale_after_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelpack.
//
// Configuration sections by subsystem:
//   - Paths: scratch, preview cache, logs, and history database
//   - Tools: ffmpeg and ffprobe binaries
//   - Encoder: codec family, hardware backend, per-encoder quality
//   - Output: image format written by unpack
//   - Preview: frame window and cache key settings
//   - Scratch: stale scratch cleanup
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Tools   Tools   `toml:"tools"`
	Encoder Encoder `toml:"encoder"`
	Output  Output  `toml:"output"`
	Preview Preview `toml:"preview"`
	Scratch Scratch `toml:"scratch"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelpack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the scratch, preview, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.PreviewDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.HistoryDB); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for encode, mux, and decode.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFmpeg) == "" {
		return defaultFFmpegBinary
	}
	return c.Tools.FFmpeg
}

// FFprobeBinary returns the ffprobe executable used for image inspection.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFprobe) == "" {
		return defaultFFprobeBinary
	}
	return c.Tools.FFprobe
}

// PackScratchDir is the parent of per-operation pack scratch directories.
func (c *Config) PackScratchDir() string {
	return filepath.Join(c.Paths.ScratchDir, "pack")
}

// LockRetryInterval is how often a preview extraction retries a held folder lock.
func (c *Config) LockRetryInterval() time.Duration {
	return time.Duration(c.Preview.LockRetryMillis) * time.Millisecond
}

// StaleScratchAge is the minimum age before an abandoned scratch directory is removed.
func (c *Config) StaleScratchAge() time.Duration {
	return time.Duration(c.Scratch.StaleAfterHours) * time.Hour
}

// EncoderSettings resolves the configured family and hardware to a concrete
// encoder together with its quality pair.
func (c *Config) EncoderSettings() (encoders.Settings, error) {
	family, err := encoders.ParseFamily(c.Encoder.Family)
	if err != nil {
		return encoders.Settings{}, err
	}
	backend, err := encoders.ParseBackend(c.Encoder.Hardware)
	if err != nil {
		return encoders.Settings{}, err
	}
	id, err := encoders.Resolve(family, backend)
	if err != nil {
		return encoders.Settings{}, err
	}
	q := c.Encoder.quality(id)
	return encoders.Settings{Encoder: id, Quality: q.CRF, Preset: q.Preset}, nil
}

// ImageOutput returns the unpack format override. ok is false when frames
// keep their original format.
func (c *Config) ImageOutput() (out encoders.ImageOutput, ok bool) {
	if c.Output.Type == "" || c.Output.Type == defaultOutputType {
		return encoders.ImageOutput{}, false
	}
	t, err := imagefmt.Parse(c.Output.Type)
	if err != nil {
		return encoders.ImageOutput{}, false
	}
	return encoders.ImageOutput{Type: t, QualityLevel: c.Output.QualityLevel, WebPLossless: c.Output.WebPLossless}, true
}

func (e *Encoder) quality(id encoders.ID) EncoderQuality {
	switch id {
	case encoders.Libx265:
		return e.Libx265
	case encoders.HEVCAMF:
		return e.HEVCAMF
	case encoders.HEVCNVENC:
		return e.HEVCNVENC
	case encoders.LibSVTAV1:
		return e.LibSVTAV1
	case encoders.AV1AMF:
		return e.AV1AMF
	case encoders.AV1NVENC:
		return e.AV1NVENC
	default:
		return EncoderQuality{}
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir(sub string) string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "reelpack", sub)
	}
	return "~/.cache/reelpack/" + sub
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Sample returns the embedded sample configuration.
func Sample() string {
	return sampleConfig
}
