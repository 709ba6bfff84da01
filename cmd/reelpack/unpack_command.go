package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelpack/internal/archiveindex"
	"reelpack/internal/config"
	"reelpack/internal/encoders"
	"reelpack/internal/media/imagefmt"
	"reelpack/internal/workflow"
)

func newUnpackCommand(ctx *commandContext) *cobra.Command {
	var output string
	var imageType string
	var quality int
	var lossless bool
	var indexPath string

	cmd := &cobra.Command{
		Use:   "unpack <archive> -o <dir>",
		Short: "Restore the images and folder layout stored in an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(output) == "" {
				return errors.New("--output is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			archive, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			dest, err := config.ExpandPath(output)
			if err != nil {
				return err
			}

			req := workflow.UnpackRequest{Archive: archive, Destination: dest}
			if imageType != "" {
				t, err := imagefmt.Parse(imageType)
				if err != nil {
					return fmt.Errorf("--type: %w", err)
				}
				level := cfg.Output.QualityLevel
				if cmd.Flags().Changed("quality") {
					level = quality
				}
				out := encoders.ImageOutput{Type: t, QualityLevel: level, WebPLossless: lossless || cfg.Output.WebPLossless}
				if _, err := encoders.ImageOptions(out); err != nil {
					return err
				}
				req.Output = &out
			}
			if indexPath != "" {
				path, err := config.ExpandPath(indexPath)
				if err != nil {
					return err
				}
				idx, err := archiveindex.ReadFile(path)
				if err != nil {
					return err
				}
				req.Index = &idx
			}

			return ctx.withManager(cmd, func(runCtx context.Context, mgr *workflow.Manager) error {
				h := mgr.StartUnpack(runCtx, req)
				res := newProgressRenderer(cmd.ErrOrStderr()).watch(h)
				if err := outcomeError(res); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Images restored to %s\n", res.Output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination directory")
	cmd.Flags().StringVar(&imageType, "type", "", "Convert every frame to jpeg, png, or webp")
	cmd.Flags().IntVar(&quality, "quality", 9, "Output quality level 0-9 (9 is best)")
	cmd.Flags().BoolVar(&lossless, "lossless", false, "Write lossless webp")
	cmd.Flags().StringVar(&indexPath, "index", "", "Use this index file instead of the one embedded in the archive")
	return cmd
}
