package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelpack/internal/archiveindex"
	"reelpack/internal/config"
	"reelpack/internal/tracks"
	"reelpack/internal/workflow"
)

type trackSummary struct {
	Track     int      `json:"track"`
	ImageType string   `json:"imageType"`
	Signature string   `json:"signature"`
	Images    int      `json:"images"`
	Files     []string `json:"files,omitempty"`
}

type skippedSummary struct {
	Path     string `json:"path"`
	FileType string `json:"fileType"`
}

func newTracksCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var listFiles bool

	cmd := &cobra.Command{
		Use:   "tracks <dir|image>...",
		Short: "Show how images would be grouped into archive tracks",
		Args:  requireArgs(1, "at least one directory or image"),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := expandAll(args)
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(runCtx context.Context, mgr *workflow.Manager) error {
				result, err := mgr.Classify(runCtx, roots...)
				if err != nil {
					return err
				}
				summaries := summarizeTracks(result, listFiles)
				skipped := make([]skippedSummary, 0, len(result.Skipped))
				for _, s := range result.Skipped {
					skipped = append(skipped, skippedSummary{Path: s.Image.AbsolutePath, FileType: s.FileType})
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"tracks": summaries, "skipped": skipped})
				}

				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No supported images found")
				} else {
					rows := make([][]string, 0, len(summaries))
					for _, s := range summaries {
						rows = append(rows, []string{strconv.Itoa(s.Track), s.ImageType, strconv.Itoa(s.Images), s.Signature})
					}
					fmt.Fprintln(out, renderTable([]string{"Track", "Type", "Images", "Signature"}, rows,
						[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))
					if listFiles {
						for _, s := range summaries {
							fmt.Fprintf(out, "Track %d:\n", s.Track)
							for _, f := range s.Files {
								fmt.Fprintf(out, "  %s\n", f)
							}
						}
					}
				}
				for _, s := range skipped {
					fmt.Fprintf(out, "Skipped %s (%s)\n", s.Path, s.FileType)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&listFiles, "files", false, "List the files in each track")
	return cmd
}

func summarizeTracks(result tracks.Result, withFiles bool) []trackSummary {
	out := make([]trackSummary, 0, len(result.Tracks))
	for i, t := range result.Tracks {
		s := trackSummary{Track: i, ImageType: string(t.ImageType), Signature: t.Signature, Images: len(t.Images)}
		if withFiles {
			for _, img := range t.Images {
				s.Files = append(s.Files, img.RelativePath)
			}
		}
		out = append(out, s)
	}
	return out
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var listImages bool

	cmd := &cobra.Command{
		Use:   "index <archive>",
		Short: "Print the index embedded in an archive without unpacking it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(runCtx context.Context, mgr *workflow.Manager) error {
				idx, err := mgr.ReadIndex(runCtx, archive)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, idx)
				}
				printIndex(cmd, archive, idx, listImages)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the raw index as JSON")
	cmd.Flags().BoolVar(&listImages, "images", false, "List every image with its frame position")
	return cmd
}

func printIndex(cmd *cobra.Command, archive string, idx archiveindex.Index, listImages bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Archive: %s\n", archive)
	fmt.Fprintf(out, "Index version: %s\n", idx.Version)
	fmt.Fprintf(out, "Images: %s in %d track(s)\n", humanize.Comma(int64(len(idx.ImageList))), len(idx.TrackList))

	counts := idx.TrackCounts()
	rows := make([][]string, 0, len(idx.TrackList))
	for _, t := range idx.TrackList {
		n := 0
		if t.Track >= 0 && t.Track < len(counts) {
			n = counts[t.Track]
		}
		rows = append(rows, []string{strconv.Itoa(t.Track), string(t.ImageType), strconv.Itoa(n)})
	}
	fmt.Fprintln(out, renderTable([]string{"Track", "Type", "Frames"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight}))

	if !listImages {
		return
	}
	rows = rows[:0]
	for _, t := range idx.TrackList {
		for _, e := range idx.Entries(t.Track) {
			rows = append(rows, []string{strconv.Itoa(e.Track), strconv.Itoa(e.Index), e.DestinationPath()})
		}
	}
	fmt.Fprintln(out, renderTable([]string{"Track", "Frame", "Path"}, rows,
		[]columnAlignment{alignRight, alignRight, alignLeft}))
}
