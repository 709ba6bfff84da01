// Package imagefmt names the still-image container formats the archive engine
// understands and maps them to file extensions.
package imagefmt

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Type identifies a supported image container.
type Type string

const (
	JPEG Type = "jpeg"
	PNG  Type = "png"
	WebP Type = "webp"
)

// All lists the supported types in a stable order.
var All = []Type{JPEG, PNG, WebP}

// Parse converts a user or index supplied value to a Type. "jpg" is accepted
// as an alias for jpeg.
func Parse(value string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	default:
		return "", fmt.Errorf("unsupported image type %q", value)
	}
}

// FromPath infers the type from a file extension.
func FromPath(path string) (Type, bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", false
	}
	t, err := Parse(ext)
	if err != nil {
		return "", false
	}
	return t, true
}

// FromCodec maps an ffprobe codec_name to a Type.
func FromCodec(codec string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "mjpeg", "jpeg":
		return JPEG, true
	case "png":
		return PNG, true
	case "webp":
		return WebP, true
	default:
		return "", false
	}
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	switch t {
	case JPEG, PNG, WebP:
		return true
	default:
		return false
	}
}

// Extension returns the canonical file extension without the leading dot.
func (t Type) Extension() string {
	switch t {
	case JPEG:
		return "jpg"
	default:
		return string(t)
	}
}

// ReplaceExtension swaps the extension of name for the canonical one of t.
func (t Type) ReplaceExtension(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return base + "." + t.Extension()
}

func (t Type) String() string { return string(t) }
