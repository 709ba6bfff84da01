// Package pack turns classified image tracks into a single Matroska archive.
//
// Each track is encoded from an ffconcat manifest into its own intermediate
// video, strictly one after another. The intermediates are then stream-copied
// into one container with the archive index attached as index.json, written
// to a temporary file beside the destination and renamed into place. Scratch
// and temporary files are removed whether the run succeeds, fails, or is
// cancelled.
package pack
