package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelpack/internal/services"
	"reelpack/internal/tracks"
)

func TestImagesWalksDirectoryRelativeToParent(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "album")
	touch(t, filepath.Join(root, "img10.jpg"))
	touch(t, filepath.Join(root, "img2.JPG"))
	touch(t, filepath.Join(root, "img1.png"))
	touch(t, filepath.Join(root, "sub", "a.webp"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "clip.mp4"))

	got, err := Images(context.Background(), root)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	want := []string{
		"album/img1.png",
		"album/img2.JPG",
		"album/img10.jpg",
		"album/sub/a.webp",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d images, want %d: %+v", len(got), len(want), got)
	}
	for i, img := range got {
		if img.RelativePath != want[i] {
			t.Fatalf("image %d relativePath = %q, want %q", i, img.RelativePath, want[i])
		}
		if img.Sort != i {
			t.Fatalf("image %d sort = %v, want %d", i, img.Sort, i)
		}
		if !filepath.IsAbs(img.AbsolutePath) {
			t.Fatalf("absolute path not absolute: %q", img.AbsolutePath)
		}
	}
	if got[3].FileName != "a.webp" {
		t.Fatalf("fileName = %q", got[3].FileName)
	}
}

func TestImagesSingleFileAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cover.webp")
	touch(t, file)

	got, err := Images(context.Background(), file, dir)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected duplicate paths collapsed, got %+v", got)
	}
	if got[0].RelativePath != "cover.webp" {
		t.Fatalf("relativePath = %q", got[0].RelativePath)
	}
}

func TestImagesRejectsSameNameFromDifferentFolders(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a", "x.jpg")
	second := filepath.Join(dir, "b", "x.jpg")
	touch(t, first)
	touch(t, second)

	_, err := Images(context.Background(), first, second)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for colliding names, got %v", err)
	}

	got, err := Images(context.Background(), filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	if err != nil {
		t.Fatalf("folders keep distinct paths: %v", err)
	}
	if len(got) != 2 || got[0].RelativePath != "a/x.jpg" || got[1].RelativePath != "b/x.jpg" {
		t.Fatalf("unexpected images %+v", got)
	}
}

func TestImagesMissingRoot(t *testing.T) {
	_, err := Images(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImagesCancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Images(ctx, root)
	if !services.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestSortNatural(t *testing.T) {
	images := []tracks.Image{
		{RelativePath: "p/Page 12.png"},
		{RelativePath: "p/page 3.png"},
		{RelativePath: "p/page 1.png"},
	}
	SortNatural(images)
	want := []string{"p/page 1.png", "p/page 3.png", "p/Page 12.png"}
	for i, img := range images {
		if img.RelativePath != want[i] {
			t.Fatalf("position %d = %q, want %q", i, img.RelativePath, want[i])
		}
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
