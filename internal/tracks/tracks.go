package tracks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"reelpack/internal/logging"
	"reelpack/internal/media/imagefmt"
	"reelpack/internal/services"
)

// MaxPixels is the largest width*height ffmpeg accepts for one plane.
const MaxPixels = (1<<31)/8 - 1

var (
	// ErrResolutionExceeded aborts classification; no tracks are produced.
	ErrResolutionExceeded = fmt.Errorf("%w: image resolution exceeds codec limit", services.ErrValidation)
	// ErrUnsupportedFormat marks images excluded from every track.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Image identifies a source file and its position under the originating root.
type Image struct {
	FileName     string `json:"fileName"`
	AbsolutePath string `json:"absolutePath"`
	RelativePath string `json:"relativePath"`
	// Sort is an optional caller-supplied ordering key carried into the index.
	Sort any `json:"sort,omitempty"`
}

// Track is a homogeneous group of images encoded as one video stream.
type Track struct {
	ImageType imagefmt.Type
	Signature string
	Images    []Image
}

// Skipped records an image excluded because its format is unsupported.
type Skipped struct {
	Image    Image
	FileType string
	Err      error
}

// Result is the classifier output.
type Result struct {
	Tracks  []Track
	Skipped []Skipped
}

// ImageCount returns the number of classified images across all tracks.
func (r Result) ImageCount() int {
	n := 0
	for _, t := range r.Tracks {
		n += len(t.Images)
	}
	return n
}

// Metadata is the decoded signature of one image.
type Metadata struct {
	// FileType is the detected container, e.g. "jpeg", "png", "webp", "gif".
	FileType string
	Width    int
	Height   int
	BitDepth int
	// Components and Subsampling describe jpeg chroma layout.
	Components  int
	Subsampling string
	// ColorMode is the png colour type.
	ColorMode string
}

// MetadataReader reads the signature fields of an image file.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, path string) (Metadata, error)
}

// Classifier buckets images into tracks.
type Classifier struct {
	reader MetadataReader
	logger *slog.Logger
}

// NewClassifier constructs a classifier over reader.
func NewClassifier(reader MetadataReader, logger *slog.Logger) *Classifier {
	return &Classifier{reader: reader, logger: logging.NewComponentLogger(logger, "classifier")}
}

// Classify partitions images into tracks sorted by descending size, ties in
// first-seen order. Cancellation is checked before every image.
func (c *Classifier) Classify(ctx context.Context, images []Image) (Result, error) {
	if c.reader == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "classify", "", "metadata reader not configured", nil)
	}
	logger := logging.WithContext(ctx, c.logger)

	var result Result
	bySignature := make(map[string]int)
	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return Result{}, services.Cancelled("classify", image.AbsolutePath, err)
		}

		meta, err := c.reader.ReadMetadata(ctx, image.AbsolutePath)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, services.Cancelled("classify", image.AbsolutePath, ctxErr)
			}
			return Result{}, services.Wrap(services.ErrValidation, "classify", image.AbsolutePath, "read image metadata", err)
		}
		if int64(meta.Width)*int64(meta.Height) > MaxPixels {
			return Result{}, fmt.Errorf("%w: %s is %dx%d", ErrResolutionExceeded, image.AbsolutePath, meta.Width, meta.Height)
		}

		imageType, signature, ok := Signature(meta)
		if !ok {
			skip := Skipped{
				Image:    image,
				FileType: meta.FileType,
				Err:      fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, image.AbsolutePath, meta.FileType),
			}
			result.Skipped = append(result.Skipped, skip)
			logging.WarnWithContext(logger, "image skipped", "unsupported_format",
				logging.String("path", image.AbsolutePath),
				logging.String("file_type", meta.FileType),
				logging.String(logging.FieldErrorHint, "convert the image to jpeg, png, or webp"),
				logging.String(logging.FieldImpact, "image is not included in the archive"),
			)
			continue
		}

		idx, seen := bySignature[signature]
		if !seen {
			idx = len(result.Tracks)
			bySignature[signature] = idx
			result.Tracks = append(result.Tracks, Track{ImageType: imageType, Signature: signature})
		}
		result.Tracks[idx].Images = append(result.Tracks[idx].Images, image)
	}

	slices.SortStableFunc(result.Tracks, func(a, b Track) int {
		return len(b.Images) - len(a.Images)
	})

	logger.Debug("classification complete",
		logging.Int("images", len(images)),
		logging.Int("tracks", len(result.Tracks)),
		logging.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// Signature builds the grouping key for meta. ok is false for unsupported
// file types.
func Signature(meta Metadata) (imagefmt.Type, string, bool) {
	imageType, err := imagefmt.Parse(meta.FileType)
	if err != nil {
		return "", "", false
	}
	switch imageType {
	case imagefmt.JPEG:
		return imageType, fmt.Sprintf("%dx%d_%dBits_%d_%s_jpeg",
			meta.Height, meta.Width, meta.BitDepth, meta.Components, meta.Subsampling), true
	case imagefmt.PNG:
		return imageType, fmt.Sprintf("%dx%d_%dBits_%s_png",
			meta.Height, meta.Width, meta.BitDepth, meta.ColorMode), true
	default:
		return imageType, fmt.Sprintf("%dx%d_webp", meta.Height, meta.Width), true
	}
}
