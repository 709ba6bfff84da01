// Package scan turns user-selected directories and files into classifier
// input, ordered the way a file browser would list them.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"reelpack/internal/media/imagefmt"
	"reelpack/internal/services"
	"reelpack/internal/tracks"
)

// Images collects every jpeg, png and webp file under the given roots.
//
// Directories are walked recursively and each image's RelativePath is taken
// relative to the directory's parent, so the root folder name survives a
// round trip. A root that names a file contributes just that file with its
// base name as RelativePath; two inputs that would restore to the same
// RelativePath are rejected. The result is ordered by a numeric-aware
// collation of RelativePath and Sort holds the resulting position.
func Images(ctx context.Context, roots ...string) ([]tracks.Image, error) {
	if len(roots) == 0 {
		return nil, services.Wrap(services.ErrValidation, "scan", "images", "no input paths", nil)
	}

	var images []tracks.Image
	seen := make(map[string]struct{})
	targets := make(map[string]string)
	add := func(abs, rel string) error {
		if _, dup := seen[abs]; dup {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if other, clash := targets[rel]; clash {
			return services.Wrap(services.ErrValidation, "scan", "images",
				fmt.Sprintf("%s and %s would both restore to %s", other, abs, rel), nil)
		}
		seen[abs] = struct{}{}
		targets[rel] = abs
		images = append(images, tracks.Image{
			FileName:     filepath.Base(abs),
			AbsolutePath: abs,
			RelativePath: rel,
		})
		return nil
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, services.Wrap(services.ErrNotFound, "scan", "stat", abs, err)
			}
			return nil, fmt.Errorf("stat %s: %w", abs, err)
		}
		if !info.IsDir() {
			if isImage(abs) {
				if err := add(abs, filepath.Base(abs)); err != nil {
					return nil, err
				}
			}
			continue
		}

		base := filepath.Dir(abs)
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !isImage(path) {
				return nil
			}
			rel, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}
			return add(path, rel)
		})
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, services.Cancelled("scan", "walk", ctx.Err())
			}
			return nil, fmt.Errorf("walk %s: %w", abs, err)
		}
	}

	SortNatural(images)
	for i := range images {
		images[i].Sort = i
	}
	return images, nil
}

// SortNatural orders images by RelativePath so that "img2" precedes "img10".
func SortNatural(images []tracks.Image) {
	col := collate.New(language.Und, collate.Numeric, collate.IgnoreCase)
	sort.SliceStable(images, func(i, j int) bool {
		return col.CompareString(images[i].RelativePath, images[j].RelativePath) < 0
	})
}

func isImage(path string) bool {
	_, ok := imagefmt.FromPath(path)
	return ok
}
