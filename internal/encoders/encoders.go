// Package encoders resolves an abstract codec family and hardware backend to a
// concrete ffmpeg video encoder and renders its quality and speed options.
//
// Every encoder carries its own option table because the quality scale and the
// meaning of the speed knob differ between implementations: the software
// encoders treat a larger preset as faster while the vendor encoders use
// shifted or inverted scales.
package encoders

import (
	"fmt"
	"strings"

	"reelpack/internal/services"
)

// Family is the abstract codec family.
type Family string

const (
	FamilyHEVC Family = "hevc"
	FamilyAV1  Family = "av1"
)

// Backend selects the hardware encoder vendor, or software encoding.
type Backend string

const (
	BackendNone   Backend = "none"
	BackendAMD    Backend = "amd"
	BackendNVIDIA Backend = "nvidia"
)

// ID is a concrete ffmpeg encoder name.
type ID string

const (
	Libx265   ID = "libx265"
	HEVCAMF   ID = "hevc_amf"
	HEVCNVENC ID = "hevc_nvenc"
	LibSVTAV1 ID = "libsvtav1"
	AV1AMF    ID = "av1_amf"
	AV1NVENC  ID = "av1_nvenc"
)

// ParseFamily validates a configured family name.
func ParseFamily(value string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(value))) {
	case FamilyHEVC, "h265", "x265":
		return FamilyHEVC, nil
	case FamilyAV1:
		return FamilyAV1, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "settings", "parse family", fmt.Sprintf("unknown encoder family %q", value), nil)
	}
}

// ParseBackend validates a configured hardware backend name. An empty value
// selects software encoding.
func ParseBackend(value string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(value))) {
	case BackendNone, "", "cpu", "software":
		return BackendNone, nil
	case BackendAMD, "amf":
		return BackendAMD, nil
	case BackendNVIDIA, "nvenc":
		return BackendNVIDIA, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "settings", "parse backend", fmt.Sprintf("unknown hardware backend %q", value), nil)
	}
}

// Resolve maps a family and backend to the concrete encoder.
func Resolve(family Family, backend Backend) (ID, error) {
	for _, spec := range table {
		if spec.Family == family && spec.Backend == backend {
			return spec.ID, nil
		}
	}
	return "", services.Wrap(services.ErrConfiguration, "settings", "resolve encoder", fmt.Sprintf("no encoder for family %q backend %q", family, backend), nil)
}

// Settings is a resolved encoder plus its quality and preset values, expressed
// on the encoder's own configuration scale.
type Settings struct {
	Encoder ID
	Quality int
	Preset  int
}

// OutputOptions renders the ffmpeg output options for settings, rejecting
// values outside the encoder's domain.
func OutputOptions(settings Settings) ([]string, error) {
	spec, ok := Lookup(settings.Encoder)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "settings", "encoder options", fmt.Sprintf("unknown encoder %q", settings.Encoder), nil)
	}
	if err := spec.Validate(settings.Quality, settings.Preset); err != nil {
		return nil, err
	}
	return spec.options(settings.Quality, settings.Preset), nil
}

// Spec describes one encoder's option table.
type Spec struct {
	ID      ID
	Family  Family
	Backend Backend

	// RateControl options are emitted before the quality parameters.
	RateControl   []string
	QualityParams []string
	QualityMin    int
	QualityMax    int
	PresetParam   string
	PresetMin     int
	PresetMax     int

	// DefaultQuality and DefaultPreset seed new configurations.
	DefaultQuality int
	DefaultPreset  int

	qualityValue func(int) string
	presetValue  func(int) string
}

// Validate checks quality and preset against the encoder's ranges.
func (s Spec) Validate(quality, preset int) error {
	if quality < s.QualityMin || quality > s.QualityMax {
		return services.Wrap(services.ErrConfiguration, "settings", string(s.ID),
			fmt.Sprintf("quality %d outside %d-%d", quality, s.QualityMin, s.QualityMax), nil)
	}
	if preset < s.PresetMin || preset > s.PresetMax {
		return services.Wrap(services.ErrConfiguration, "settings", string(s.ID),
			fmt.Sprintf("preset %d outside %d-%d", preset, s.PresetMin, s.PresetMax), nil)
	}
	return nil
}

func (s Spec) options(quality, preset int) []string {
	opts := make([]string, 0, len(s.RateControl)+2*len(s.QualityParams)+2)
	opts = append(opts, s.RateControl...)
	q := s.qualityValue(quality)
	for _, param := range s.QualityParams {
		opts = append(opts, param, q)
	}
	return append(opts, s.PresetParam, s.presetValue(preset))
}

// Lookup returns the option table for id.
func Lookup(id ID) (Spec, bool) {
	for _, spec := range table {
		if spec.ID == id {
			return spec, true
		}
	}
	return Spec{}, false
}

// Specs returns every known encoder in resolution order.
func Specs() []Spec {
	out := make([]Spec, len(table))
	copy(out, table)
	return out
}
