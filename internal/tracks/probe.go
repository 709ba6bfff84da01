package tracks

import (
	"context"
	"errors"
	"strings"

	"reelpack/internal/media/ffprobe"
	"reelpack/internal/media/imagefmt"
)

var inspect = ffprobe.Inspect

// ProbeReader reads image metadata with ffprobe.
type ProbeReader struct {
	Binary string
}

// NewProbeReader constructs a reader using the ffprobe binary.
func NewProbeReader(binary string) *ProbeReader {
	return &ProbeReader{Binary: binary}
}

// ReadMetadata implements MetadataReader.
func (p *ProbeReader) ReadMetadata(ctx context.Context, path string) (Metadata, error) {
	result, err := inspect(ctx, p.Binary, path)
	if err != nil {
		return Metadata{}, err
	}
	streams := result.VideoStreams()
	if len(streams) == 0 {
		return Metadata{}, errors.New("no image stream found")
	}
	return metadataFromStream(fileType(result, streams[0]), streams[0]), nil
}

// fileType prefers the stream codec. ffprobe reports "image2" rather than
// "jpeg_pipe" for many camera JPEGs, so the container name is a fallback.
func fileType(result ffprobe.Result, s ffprobe.Stream) string {
	if t, ok := imagefmt.FromCodec(s.CodecName); ok {
		return string(t)
	}
	return result.ContainerType()
}

func metadataFromStream(container string, s ffprobe.Stream) Metadata {
	meta := Metadata{
		FileType: container,
		Width:    s.Width,
		Height:   s.Height,
	}
	layout := lookupPixelLayout(s.PixFmt)
	meta.BitDepth = s.BitsPerSample()
	if meta.BitDepth == 0 {
		meta.BitDepth = layout.depth
	}
	switch container {
	case "jpeg":
		meta.Components = layout.components
		meta.Subsampling = layout.subsampling
	case "png":
		meta.ColorMode = layout.colorMode
	}
	return meta
}

type pixelLayout struct {
	components  int
	subsampling string
	colorMode   string
	depth       int
}

var pixelLayouts = map[string]pixelLayout{
	"yuvj420p": {3, "4:2:0", "YCbCr", 8},
	"yuv420p":  {3, "4:2:0", "YCbCr", 8},
	"yuvj422p": {3, "4:2:2", "YCbCr", 8},
	"yuv422p":  {3, "4:2:2", "YCbCr", 8},
	"yuvj444p": {3, "4:4:4", "YCbCr", 8},
	"yuv444p":  {3, "4:4:4", "YCbCr", 8},
	"yuvj440p": {3, "4:4:0", "YCbCr", 8},
	"yuvj411p": {3, "4:1:1", "YCbCr", 8},
	"cmyk":     {4, "none", "CMYK", 8},
	"gray":     {1, "none", "Grayscale", 8},
	"gray16be": {1, "none", "Grayscale", 16},
	"monob":    {1, "none", "Grayscale", 1},
	"ya8":      {2, "none", "Grayscale with Alpha", 8},
	"ya16be":   {2, "none", "Grayscale with Alpha", 16},
	"rgb24":    {3, "none", "RGB", 8},
	"rgb48be":  {3, "none", "RGB", 16},
	"rgba":     {4, "none", "RGB with Alpha", 8},
	"rgba64be": {4, "none", "RGB with Alpha", 16},
	"pal8":     {1, "none", "Palette", 8},
}

func lookupPixelLayout(pixFmt string) pixelLayout {
	pixFmt = strings.ToLower(strings.TrimSpace(pixFmt))
	if layout, ok := pixelLayouts[pixFmt]; ok {
		return layout
	}
	return pixelLayout{subsampling: pixFmt, colorMode: pixFmt, depth: 8}
}
