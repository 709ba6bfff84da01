package tracks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"reelpack/internal/logging"
	"reelpack/internal/media/imagefmt"
	"reelpack/internal/services"
)

type fakeReader struct {
	meta  map[string]Metadata
	calls int
	// onRead runs before each lookup.
	onRead func(path string)
}

func (f *fakeReader) ReadMetadata(_ context.Context, path string) (Metadata, error) {
	f.calls++
	if f.onRead != nil {
		f.onRead(path)
	}
	m, ok := f.meta[path]
	if !ok {
		return Metadata{}, fmt.Errorf("no metadata for %s", path)
	}
	return m, nil
}

var (
	hdJPEG    = Metadata{FileType: "jpeg", Width: 1920, Height: 1080, BitDepth: 8, Components: 3, Subsampling: "4:2:0"}
	deepPNG   = Metadata{FileType: "png", Width: 800, Height: 600, BitDepth: 16, ColorMode: "RGB with Alpha"}
	smallWebP = Metadata{FileType: "webp", Width: 640, Height: 480}
)

func makeImages(reader *fakeReader, prefix string, n int, meta Metadata) []Image {
	out := make([]Image, 0, n)
	for i := range n {
		path := fmt.Sprintf("/src/%s_%02d", prefix, i)
		reader.meta[path] = meta
		out = append(out, Image{FileName: fmt.Sprintf("%s_%02d", prefix, i), AbsolutePath: path, RelativePath: "src/" + fmt.Sprintf("%s_%02d", prefix, i)})
	}
	return out
}

func newReader() *fakeReader {
	return &fakeReader{meta: map[string]Metadata{}}
}

func TestClassifyJPEGAndPNGScenario(t *testing.T) {
	reader := newReader()
	pngs := makeImages(reader, "png", 5, deepPNG)
	jpegs := makeImages(reader, "jpg", 10, hdJPEG)
	// PNGs come first so first-seen order differs from size order.
	images := append(append([]Image{}, pngs...), jpegs...)

	result, err := NewClassifier(reader, logging.NewNop()).Classify(context.Background(), images)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if len(result.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(result.Tracks))
	}
	if result.Tracks[0].ImageType != imagefmt.JPEG || len(result.Tracks[0].Images) != 10 {
		t.Fatalf("track 0 should hold the 10 jpegs, got %s x%d", result.Tracks[0].ImageType, len(result.Tracks[0].Images))
	}
	if result.Tracks[1].ImageType != imagefmt.PNG || len(result.Tracks[1].Images) != 5 {
		t.Fatalf("track 1 should hold the 5 pngs, got %s x%d", result.Tracks[1].ImageType, len(result.Tracks[1].Images))
	}
	for i, img := range result.Tracks[0].Images {
		if img != jpegs[i] {
			t.Fatalf("track order not preserved at %d: %+v", i, img)
		}
	}
}

func TestClassifyPartitionsExactlyOnce(t *testing.T) {
	reader := newReader()
	var images []Image
	images = append(images, makeImages(reader, "a", 3, hdJPEG)...)
	images = append(images, makeImages(reader, "b", 4, smallWebP)...)
	images = append(images, makeImages(reader, "c", 2, deepPNG)...)
	otherJPEG := hdJPEG
	otherJPEG.Subsampling = "4:4:4"
	images = append(images, makeImages(reader, "d", 3, otherJPEG)...)

	result, err := NewClassifier(reader, nil).Classify(context.Background(), images)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	seen := map[string]int{}
	for _, track := range result.Tracks {
		for _, img := range track.Images {
			seen[img.AbsolutePath]++
			_, sig, _ := Signature(reader.meta[img.AbsolutePath])
			if sig != track.Signature {
				t.Fatalf("%s has signature %s in track %s", img.AbsolutePath, sig, track.Signature)
			}
		}
	}
	if len(seen) != len(images) || result.ImageCount() != len(images) {
		t.Fatalf("expected %d images, saw %d", len(images), len(seen))
	}
	for path, n := range seen {
		if n != 1 {
			t.Fatalf("%s appeared %d times", path, n)
		}
	}
}

func TestClassifyTiesKeepFirstSeenOrder(t *testing.T) {
	reader := newReader()
	var images []Image
	images = append(images, makeImages(reader, "webp", 3, smallWebP)...)
	images = append(images, makeImages(reader, "png", 3, deepPNG)...)
	images = append(images, makeImages(reader, "jpg", 5, hdJPEG)...)

	result, err := NewClassifier(reader, nil).Classify(context.Background(), images)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	got := []imagefmt.Type{result.Tracks[0].ImageType, result.Tracks[1].ImageType, result.Tracks[2].ImageType}
	want := []imagefmt.Type{imagefmt.JPEG, imagefmt.WebP, imagefmt.PNG}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("track order = %v, want %v", got, want)
		}
	}
}

func TestClassifyResolutionExceeded(t *testing.T) {
	reader := newReader()
	images := makeImages(reader, "ok", 2, hdJPEG)
	huge := Metadata{FileType: "png", Width: 20000, Height: 20000, BitDepth: 8, ColorMode: "RGB"}
	images = append(images, makeImages(reader, "huge", 1, huge)...)

	result, err := NewClassifier(reader, nil).Classify(context.Background(), images)
	if !errors.Is(err, ErrResolutionExceeded) {
		t.Fatalf("expected ErrResolutionExceeded, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if len(result.Tracks) != 0 {
		t.Fatalf("expected no tracks, got %d", len(result.Tracks))
	}
	if want := "/src/huge_00"; !strings.Contains(err.Error(), want) {
		t.Fatalf("error should name %s: %v", want, err)
	}
}

func TestClassifyResolutionBoundary(t *testing.T) {
	reader := newReader()
	// 16384*16383 = 268419072 <= MaxPixels (268435455)
	edge := Metadata{FileType: "webp", Width: 16384, Height: 16383}
	images := makeImages(reader, "edge", 1, edge)
	if _, err := NewClassifier(reader, nil).Classify(context.Background(), images); err != nil {
		t.Fatalf("expected boundary image to pass, got %v", err)
	}
}

func TestClassifySkipsUnsupportedFormats(t *testing.T) {
	reader := newReader()
	images := makeImages(reader, "jpg", 2, hdJPEG)
	images = append(images, makeImages(reader, "gif", 1, Metadata{FileType: "gif", Width: 10, Height: 10})...)

	result, err := NewClassifier(reader, nil).Classify(context.Background(), images)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.ImageCount() != 2 {
		t.Fatalf("expected 2 classified images, got %d", result.ImageCount())
	}
	if len(result.Skipped) != 1 || result.Skipped[0].FileType != "gif" {
		t.Fatalf("expected gif to be reported as skipped, got %+v", result.Skipped)
	}
	if !errors.Is(result.Skipped[0].Err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", result.Skipped[0].Err)
	}
}

func TestClassifyCancellationStopsImmediately(t *testing.T) {
	reader := newReader()
	images := makeImages(reader, "jpg", 10, hdJPEG)
	ctx, cancel := context.WithCancel(context.Background())
	reader.onRead = func(path string) {
		if path == "/src/jpg_02" {
			cancel()
		}
	}

	_, err := NewClassifier(reader, nil).Classify(ctx, images)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if reader.calls != 3 {
		t.Fatalf("expected 3 metadata reads before stopping, got %d", reader.calls)
	}
}

func TestClassifyMetadataFailureIsFatal(t *testing.T) {
	reader := newReader()
	images := []Image{{FileName: "missing", AbsolutePath: "/src/missing"}}
	_, err := NewClassifier(reader, nil).Classify(context.Background(), images)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSignatureFormats(t *testing.T) {
	tests := []struct {
		meta Metadata
		want string
	}{
		{hdJPEG, "1080x1920_8Bits_3_4:2:0_jpeg"},
		{deepPNG, "600x800_16Bits_RGB with Alpha_png"},
		{smallWebP, "480x640_webp"},
	}
	for _, tt := range tests {
		_, got, ok := Signature(tt.meta)
		if !ok || got != tt.want {
			t.Fatalf("Signature(%+v) = %q %v, want %q", tt.meta, got, ok, tt.want)
		}
	}
	if _, _, ok := Signature(Metadata{FileType: "bmp"}); ok {
		t.Fatal("expected bmp to be unsupported")
	}
}
