package tracks

import (
	"context"
	"testing"

	"reelpack/internal/logging"
	"reelpack/internal/media/ffprobe"
	"reelpack/internal/media/imagefmt"
)

func TestProbeReaderMapsJPEG(t *testing.T) {
	stubInspect(t, ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "mjpeg", Width: 1920, Height: 1080, PixFmt: "yuvj420p", BitsPerRawSample: "8"}},
		Format:  ffprobe.Format{FormatName: "jpeg_pipe"},
	})
	meta, err := NewProbeReader("ffprobe").ReadMetadata(context.Background(), "/src/a.jpg")
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	want := Metadata{FileType: "jpeg", Width: 1920, Height: 1080, BitDepth: 8, Components: 3, Subsampling: "4:2:0"}
	if meta != want {
		t.Fatalf("ReadMetadata = %+v, want %+v", meta, want)
	}
}

func TestProbeReaderUsesCodecWhenDemuxerIsImage2(t *testing.T) {
	stubInspect(t, ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "mjpeg", Width: 1920, Height: 1080, PixFmt: "yuvj420p"}},
		Format:  ffprobe.Format{FormatName: "image2"},
	})
	reader := NewProbeReader("ffprobe")
	meta, err := reader.ReadMetadata(context.Background(), "/src/a.jpg")
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	want := Metadata{FileType: "jpeg", Width: 1920, Height: 1080, BitDepth: 8, Components: 3, Subsampling: "4:2:0"}
	if meta != want {
		t.Fatalf("ReadMetadata = %+v, want %+v", meta, want)
	}

	result, err := NewClassifier(reader, logging.NewNop()).Classify(context.Background(), []Image{
		{FileName: "a.jpg", AbsolutePath: "/src/a.jpg", RelativePath: "a.jpg"},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(result.Tracks) != 1 || len(result.Skipped) != 0 || result.Tracks[0].ImageType != imagefmt.JPEG {
		t.Fatalf("expected one jpeg track, got %+v", result)
	}
}

func TestProbeReaderMapsPNGDepthFromPixelFormat(t *testing.T) {
	stubInspect(t, ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "png", Width: 800, Height: 600, PixFmt: "rgba64be"}},
		Format:  ffprobe.Format{FormatName: "png_pipe"},
	})
	meta, err := NewProbeReader("ffprobe").ReadMetadata(context.Background(), "/src/a.png")
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.FileType != "png" || meta.BitDepth != 16 || meta.ColorMode != "RGB with Alpha" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestProbeReaderRequiresImageStream(t *testing.T) {
	stubInspect(t, ffprobe.Result{Format: ffprobe.Format{FormatName: "gif"}})
	if _, err := NewProbeReader("ffprobe").ReadMetadata(context.Background(), "/src/a.gif"); err == nil {
		t.Fatal("expected error for missing stream")
	}
}

func stubInspect(t *testing.T, result ffprobe.Result) {
	t.Helper()
	orig := inspect
	inspect = func(context.Context, string, string) (ffprobe.Result, error) { return result, nil }
	t.Cleanup(func() { inspect = orig })
}
