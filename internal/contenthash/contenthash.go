// Package contenthash derives stable cache keys for archives by hashing a
// fixed-size prefix of the file with BLAKE3.
package contenthash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"reelpack/internal/services"
)

// DefaultPrefixBytes is the number of leading bytes hashed when the caller
// does not configure a limit.
const DefaultPrefixBytes int64 = 2 << 20

// PrefixHash returns the hex BLAKE3 digest of the first n bytes of path.
// Files shorter than n are hashed in full. n <= 0 uses DefaultPrefixBytes.
func PrefixHash(path string, n int64) (string, error) {
	if n <= 0 {
		n = DefaultPrefixBytes
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", services.Wrap(services.ErrNotFound, "contenthash", "open", "archive not found", err)
		}
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Reader(f, n)
}

// Reader hashes at most n bytes from r.
func Reader(r io.Reader, n int64) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, io.LimitReader(r, n)); err != nil {
		return "", fmt.Errorf("hash prefix: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
