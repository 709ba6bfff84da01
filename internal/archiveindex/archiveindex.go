// Package archiveindex models the JSON index embedded in every archive. The
// index maps container tracks and frame positions back to original file
// identities and is the only source used to rebuild the directory layout.
package archiveindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"reelpack/internal/media/imagefmt"
	"reelpack/internal/services"
	"reelpack/internal/tracks"
)

// FileName is the attachment name inside the container.
const FileName = "index.json"

// MimeType is the attachment MIME type.
const MimeType = "application/json"

// FormatVersion is written when the caller does not supply a version.
const FormatVersion = "1"

// ErrIndexMissing reports an index that is absent, unparsable, or violates
// the layout invariants.
var ErrIndexMissing = errors.New("archive index missing or invalid")

// TrackEntry describes one video stream.
type TrackEntry struct {
	ImageType imagefmt.Type `json:"imageType"`
	Track     int           `json:"track"`
}

// ImageEntry places one source image at a frame position.
type ImageEntry struct {
	ImageType    imagefmt.Type `json:"imageType"`
	Track        int           `json:"track"`
	FileName     string        `json:"fileName"`
	RelativePath string        `json:"relativePath"`
	Index        int           `json:"index"`
	Sort         any           `json:"sort,omitempty"`
}

// Index is the serialized archive layout.
type Index struct {
	Version   string       `json:"version"`
	TrackList []TrackEntry `json:"trackList"`
	ImageList []ImageEntry `json:"imageList"`
}

// Build assembles the index for classified tracks. Frame positions follow the
// order of images inside each track.
func Build(version string, trackSet []tracks.Track) Index {
	if strings.TrimSpace(version) == "" {
		version = FormatVersion
	}
	idx := Index{
		Version:   version,
		TrackList: make([]TrackEntry, 0, len(trackSet)),
	}
	for trackNo, track := range trackSet {
		idx.TrackList = append(idx.TrackList, TrackEntry{ImageType: track.ImageType, Track: trackNo})
		for frame, image := range track.Images {
			idx.ImageList = append(idx.ImageList, ImageEntry{
				ImageType:    track.ImageType,
				Track:        trackNo,
				FileName:     image.FileName,
				RelativePath: filepath.ToSlash(image.RelativePath),
				Index:        frame,
				Sort:         image.Sort,
			})
		}
	}
	return idx
}

// Validate checks the layout invariants: tracks numbered 0..n-1, every image
// on a listed track, per-track frame indexes contiguous from 0, and relative
// paths that stay inside the destination.
func (x Index) Validate() error {
	if len(x.TrackList) == 0 {
		return invalid("no tracks")
	}
	types := make(map[int]imagefmt.Type, len(x.TrackList))
	for _, t := range x.TrackList {
		if !t.ImageType.Valid() {
			return invalid(fmt.Sprintf("track %d has unsupported image type %q", t.Track, t.ImageType))
		}
		if _, dup := types[t.Track]; dup {
			return invalid(fmt.Sprintf("track %d listed twice", t.Track))
		}
		types[t.Track] = t.ImageType
	}
	for i := range len(x.TrackList) {
		if _, ok := types[i]; !ok {
			return invalid(fmt.Sprintf("track numbers must run 0..%d", len(x.TrackList)-1))
		}
	}

	frames := make(map[int][]int, len(x.TrackList))
	destinations := make(map[string]string, len(x.ImageList))
	for _, img := range x.ImageList {
		if _, ok := types[img.Track]; !ok {
			return invalid(fmt.Sprintf("%s references unknown track %d", img.FileName, img.Track))
		}
		if strings.TrimSpace(img.FileName) == "" && strings.TrimSpace(img.RelativePath) == "" {
			return invalid(fmt.Sprintf("track %d frame %d has no file name", img.Track, img.Index))
		}
		dest, err := cleanRelative(img.DestinationPath())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIndexMissing, err)
		}
		if prev, dup := destinations[dest]; dup {
			return invalid(fmt.Sprintf("%s and %s both restore to %s", prev, img.FileName, dest))
		}
		destinations[dest] = img.FileName
		frames[img.Track] = append(frames[img.Track], img.Index)
	}
	for track, list := range frames {
		slices.Sort(list)
		for want, got := range list {
			if got != want {
				return invalid(fmt.Sprintf("track %d frame indexes are not contiguous at %d", track, want))
			}
		}
	}
	for track := range types {
		if len(frames[track]) == 0 {
			return invalid(fmt.Sprintf("track %d has no images", track))
		}
	}
	return nil
}

func invalid(detail string) error {
	return fmt.Errorf("%w: %s", ErrIndexMissing, detail)
}

// TrackCounts returns the number of frames per track, indexed by track number.
func (x Index) TrackCounts() []int {
	counts := make([]int, len(x.TrackList))
	for _, img := range x.ImageList {
		if img.Track >= 0 && img.Track < len(counts) {
			counts[img.Track]++
		}
	}
	return counts
}

// TrackType returns the image type of track.
func (x Index) TrackType(track int) (imagefmt.Type, bool) {
	for _, t := range x.TrackList {
		if t.Track == track {
			return t.ImageType, true
		}
	}
	return "", false
}

// Entries returns the images of track ordered by frame index.
func (x Index) Entries(track int) []ImageEntry {
	var out []ImageEntry
	for _, img := range x.ImageList {
		if img.Track == track {
			out = append(out, img)
		}
	}
	slices.SortFunc(out, func(a, b ImageEntry) int { return a.Index - b.Index })
	return out
}

// DestinationPath is the slash-separated path the image is restored to,
// relative to the unpack destination.
func (e ImageEntry) DestinationPath() string {
	if rel := strings.TrimSpace(e.RelativePath); rel != "" {
		return rel
	}
	return e.FileName
}

// FrameFile returns the decoded frame number for the entry. The image2 muxer
// numbers files from 1, so frame index k is file k+1.
func (e ImageEntry) FrameFile() int {
	return e.Index + 1
}

// Resolve joins the entry's destination path onto root, rejecting paths that
// would escape it.
func (e ImageEntry) Resolve(root string) (string, error) {
	rel, err := cleanRelative(e.DestinationPath())
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

func cleanRelative(p string) (string, error) {
	slashed := strings.ReplaceAll(p, `\`, "/")
	if slashed == "" || path.IsAbs(slashed) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", services.Wrap(services.ErrValidation, "index", "resolve path", fmt.Sprintf("unsafe path %q", p), nil)
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", services.Wrap(services.ErrValidation, "index", "resolve path", fmt.Sprintf("unsafe path %q", p), nil)
	}
	return cleaned, nil
}

// Marshal encodes the index.
func Marshal(x Index) ([]byte, error) {
	return json.Marshal(x)
}

// Parse decodes and validates an index.
func Parse(data []byte) (Index, error) {
	var x Index
	if err := json.Unmarshal(data, &x); err != nil {
		return Index{}, fmt.Errorf("%w: %w", ErrIndexMissing, err)
	}
	if err := x.Validate(); err != nil {
		return Index{}, err
	}
	return x, nil
}

// WriteFile writes the index to path.
func WriteFile(path string, x Index) error {
	data, err := Marshal(x)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// ReadFile reads and validates the index at path.
func ReadFile(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Index{}, fmt.Errorf("%w: %w", ErrIndexMissing, err)
	}
	return Parse(data)
}
