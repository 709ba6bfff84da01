package encoders

import (
	"errors"
	"reflect"
	"testing"

	"reelpack/internal/media/imagefmt"
	"reelpack/internal/services"
)

func TestResolveCoversEveryCombination(t *testing.T) {
	tests := []struct {
		family  Family
		backend Backend
		want    ID
	}{
		{FamilyHEVC, BackendNone, Libx265},
		{FamilyHEVC, BackendAMD, HEVCAMF},
		{FamilyHEVC, BackendNVIDIA, HEVCNVENC},
		{FamilyAV1, BackendNone, LibSVTAV1},
		{FamilyAV1, BackendAMD, AV1AMF},
		{FamilyAV1, BackendNVIDIA, AV1NVENC},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.family, tt.backend)
		if err != nil {
			t.Fatalf("Resolve(%s, %s) error: %v", tt.family, tt.backend, err)
		}
		if got != tt.want {
			t.Fatalf("Resolve(%s, %s) = %s, want %s", tt.family, tt.backend, got, tt.want)
		}
	}
}

func TestResolveUnknownFamily(t *testing.T) {
	_, err := Resolve(Family("vp9"), BackendNone)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParseAliases(t *testing.T) {
	if f, err := ParseFamily(" H265 "); err != nil || f != FamilyHEVC {
		t.Fatalf("ParseFamily alias = %q %v", f, err)
	}
	if b, err := ParseBackend(""); err != nil || b != BackendNone {
		t.Fatalf("ParseBackend empty = %q %v", b, err)
	}
	if b, err := ParseBackend("nvenc"); err != nil || b != BackendNVIDIA {
		t.Fatalf("ParseBackend nvenc = %q %v", b, err)
	}
	if _, err := ParseBackend("intel"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestOutputOptionsPerEncoder(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     []string
	}{
		{"x265 medium", Settings{Libx265, 23, 4}, []string{"-crf", "23", "-preset", "medium"}},
		{"x265 fastest", Settings{Libx265, 28, 9}, []string{"-crf", "28", "-preset", "ultrafast"}},
		{"x265 slowest", Settings{Libx265, 18, 0}, []string{"-crf", "18", "-preset", "placebo"}},
		{"hevc amf", Settings{HEVCAMF, 20, 3}, []string{"-rc", "cqp", "-qp_i", "20", "-qp_p", "20", "-quality", "7"}},
		{"hevc nvenc", Settings{HEVCNVENC, 23, 4}, []string{"-rc", "constqp", "-cq", "24", "-preset", "16"}},
		{"svt av1", Settings{LibSVTAV1, 30, 5}, []string{"-crf", "30", "-preset", "8"}},
		{"av1 amf", Settings{AV1AMF, 200, 3}, []string{"-rc", "cqp", "-qp_i", "200", "-qp_p", "200", "-quality", "70"}},
		{"av1 nvenc", Settings{AV1NVENC, 0, 0}, []string{"-rc", "constqp", "-cq", "1", "-preset", "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OutputOptions(tt.settings)
			if err != nil {
				t.Fatalf("OutputOptions error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("OutputOptions = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutputOptionsRejectsOutOfRange(t *testing.T) {
	tests := []Settings{
		{Libx265, 52, 4},
		{Libx265, 23, 10},
		{AV1AMF, 256, 0},
		{AV1AMF, 100, 10},
		{HEVCNVENC, 23, -1},
		{ID("libx264"), 23, 4},
	}
	for _, s := range tests {
		if _, err := OutputOptions(s); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("OutputOptions(%+v) expected configuration error, got %v", s, err)
		}
	}
}

func TestDefaultsAreInRange(t *testing.T) {
	for _, spec := range Specs() {
		if err := spec.Validate(spec.DefaultQuality, spec.DefaultPreset); err != nil {
			t.Fatalf("%s defaults invalid: %v", spec.ID, err)
		}
	}
}

func TestImageOptions(t *testing.T) {
	tests := []struct {
		name string
		out  ImageOutput
		want []string
	}{
		{"jpeg best", ImageOutput{Type: imagefmt.JPEG, QualityLevel: 9}, []string{"-qscale:v", "2"}},
		{"jpeg worst", ImageOutput{Type: imagefmt.JPEG, QualityLevel: 0}, []string{"-qscale:v", "29"}},
		{"png", ImageOutput{Type: imagefmt.PNG, QualityLevel: 6}, []string{"-compression_level", "6"}},
		{"webp lossy", ImageOutput{Type: imagefmt.WebP, QualityLevel: 7}, []string{"-quality", "80"}},
		{"webp capped", ImageOutput{Type: imagefmt.WebP, QualityLevel: 9}, []string{"-quality", "100"}},
		{"webp lossless", ImageOutput{Type: imagefmt.WebP, QualityLevel: 5, WebPLossless: true}, []string{"-quality", "60", "-lossless", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImageOptions(tt.out)
			if err != nil {
				t.Fatalf("ImageOptions error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ImageOptions = %v, want %v", got, tt.want)
			}
		})
	}
	if _, err := ImageOptions(ImageOutput{Type: imagefmt.JPEG, QualityLevel: 10}); err == nil {
		t.Fatal("expected error for level 10")
	}
}
