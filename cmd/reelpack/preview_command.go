package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelpack/internal/config"
	"reelpack/internal/fileutil"
	"reelpack/internal/preview"
	"reelpack/internal/workflow"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var track int
	var total int
	var frame int
	var outPath string

	cmd := &cobra.Command{
		Use:   "preview <archive> --track N [--frame K [--out file]]",
		Short: "Extract preview frames from an archive through the preview cache",
		Long: "Without --frame, frame numbers are read from stdin one per line and the cached\n" +
			"image path is printed for each; the cache is purged when the command exits.\n" +
			"Frames around each request are extracted ahead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if track < 0 {
				return errors.New("--track must be non-negative")
			}
			return ctx.withManager(cmd, func(runCtx context.Context, mgr *workflow.Manager) error {
				key, err := mgr.PreviewKey(archive)
				if err != nil {
					return err
				}
				request := func(index int) (string, error) {
					h := mgr.Preview(runCtx, preview.Request{ArchivePath: archive, Hash: key, Track: track, Index: index, TotalFrames: total})
					res := h.Wait()
					if err := outcomeError(res); err != nil {
						return "", err
					}
					return res.Output, nil
				}

				out := cmd.OutOrStdout()
				if cmd.Flags().Changed("frame") {
					path, err := request(frame)
					if err != nil {
						return err
					}
					if outPath == "" {
						outPath = filepath.Base(path)
					}
					dest, err := config.ExpandPath(outPath)
					if err != nil {
						return err
					}
					if err := fileutil.CopyFileVerified(path, dest, 0o644); err != nil {
						return err
					}
					fmt.Fprintln(out, dest)
					return nil
				}

				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					line := strings.TrimSpace(scanner.Text())
					if line == "" {
						continue
					}
					index, err := strconv.Atoi(line)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "invalid frame %q\n", line)
						continue
					}
					path, err := request(index)
					if err != nil {
						if errors.Is(err, context.Canceled) {
							return err
						}
						fmt.Fprintf(cmd.ErrOrStderr(), "frame %d: %v\n", index, err)
						continue
					}
					fmt.Fprintln(out, path)
				}
				return scanner.Err()
			})
		},
	}

	cmd.Flags().IntVar(&track, "track", 0, "Archive track to preview")
	cmd.Flags().IntVar(&total, "total", 0, "Number of frames in the track (clamps the read-ahead window)")
	cmd.Flags().IntVar(&frame, "frame", 0, "Frame index to extract")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Copy the frame to this path (default: its cache name in the current directory)")
	return cmd
}
