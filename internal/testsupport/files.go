package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelpack/internal/tracks"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// Images writes a small placeholder file for every slash-separated relative
// path under root and returns them as classifier input. RelativePath keeps the
// given value.
func Images(t testing.TB, root string, relPaths ...string) []tracks.Image {
	t.Helper()

	images := make([]tracks.Image, 0, len(relPaths))
	for _, rel := range relPaths {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		WriteFile(t, abs, 16)
		images = append(images, tracks.Image{
			FileName:     filepath.Base(abs),
			AbsolutePath: abs,
			RelativePath: rel,
		})
	}
	return images
}
