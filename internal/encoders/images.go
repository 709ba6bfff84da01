package encoders

import (
	"fmt"
	"strconv"

	"reelpack/internal/media/imagefmt"
	"reelpack/internal/services"
)

// MaxImageQuality is the top of the abstract output quality scale.
const MaxImageQuality = 9

// DefaultFrameOptions are applied when frames are decoded back to their
// original format.
var DefaultFrameOptions = []string{"-qscale:v", "2"}

// ImageOutput describes how decoded frames should be written when the caller
// overrides the original format.
type ImageOutput struct {
	Type         imagefmt.Type
	QualityLevel int
	WebPLossless bool
}

// ImageOptions translates the abstract 0-9 quality level (9 is best) into the
// target format's native ffmpeg options.
func ImageOptions(out ImageOutput) ([]string, error) {
	level := out.QualityLevel
	if level < 0 || level > MaxImageQuality {
		return nil, services.Wrap(services.ErrConfiguration, "settings", "image options",
			fmt.Sprintf("quality level %d outside 0-%d", level, MaxImageQuality), nil)
	}
	switch out.Type {
	case imagefmt.JPEG:
		// mjpeg qscale runs 2 (best) to 31.
		return []string{"-qscale:v", strconv.Itoa(2 + (MaxImageQuality-level)*3)}, nil
	case imagefmt.PNG:
		return []string{"-compression_level", strconv.Itoa(level)}, nil
	case imagefmt.WebP:
		quality := min(100, 10+level*10)
		opts := []string{"-quality", strconv.Itoa(quality)}
		if out.WebPLossless {
			opts = append(opts, "-lossless", "1")
		}
		return opts, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "settings", "image options",
			fmt.Sprintf("unsupported output type %q", out.Type), nil)
	}
}
