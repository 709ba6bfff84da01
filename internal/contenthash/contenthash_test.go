package contenthash

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelpack/internal/services"
)

func TestPrefixHashIgnoresBytesPastPrefix(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mkv")
	b := filepath.Join(dir, "b.mkv")
	prefix := bytes.Repeat([]byte{0x1a}, 64)
	if err := os.WriteFile(a, append(append([]byte{}, prefix...), 'x'), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, append(append([]byte{}, prefix...), 'y'), 0o644); err != nil {
		t.Fatal(err)
	}

	ha, err := PrefixHash(a, 64)
	if err != nil {
		t.Fatalf("PrefixHash a: %v", err)
	}
	hb, err := PrefixHash(b, 64)
	if err != nil {
		t.Fatalf("PrefixHash b: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected equal prefix hashes, got %s and %s", ha, hb)
	}
	if len(ha) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(ha))
	}

	full, err := PrefixHash(a, 65)
	if err != nil {
		t.Fatal(err)
	}
	if full == ha {
		t.Fatal("expected different digest when the differing byte is included")
	}
}

func TestPrefixHashShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.mkv")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := PrefixHash(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	want, err := Reader(bytes.NewReader([]byte("abc")), DefaultPrefixBytes)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestPrefixHashMissingFile(t *testing.T) {
	_, err := PrefixHash(filepath.Join(t.TempDir(), "missing.mkv"), 10)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
