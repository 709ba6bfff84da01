package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelpack/internal/config"
	"reelpack/internal/operation"
	"reelpack/internal/services"
	"reelpack/internal/workflow"
)

func newPackCommand(ctx *commandContext) *cobra.Command {
	var output string
	var family string
	var hardware string

	cmd := &cobra.Command{
		Use:   "pack <dir|image>... -o <archive>",
		Short: "Encode images into a single video archive",
		Args:  requireArgs(1, "at least one directory or image"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(output) == "" {
				return errors.New("--output is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if family != "" {
				cfg.Encoder.Family = strings.ToLower(strings.TrimSpace(family))
			}
			if hardware != "" {
				cfg.Encoder.Hardware = strings.ToLower(strings.TrimSpace(hardware))
			}
			dest, err := config.ExpandPath(output)
			if err != nil {
				return err
			}
			sources, err := expandAll(args)
			if err != nil {
				return err
			}

			return ctx.withManager(cmd, func(runCtx context.Context, mgr *workflow.Manager) error {
				out := cmd.OutOrStdout()
				settings := mgr.EncoderSettings()
				fmt.Fprintf(out, "Packing with %s (quality %d, preset %d)\n", settings.Encoder, settings.Quality, settings.Preset)

				h := mgr.StartPack(runCtx, workflow.PackRequest{Sources: sources, Destination: dest})
				res := newProgressRenderer(cmd.ErrOrStderr()).watch(h)
				if err := outcomeError(res); err != nil {
					return err
				}
				fmt.Fprintf(out, "Archive written to %s (%s)\n", res.Output, res.Finished.Sub(res.Started).Round(time.Millisecond))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (.mkv is appended when missing)")
	cmd.Flags().StringVar(&family, "family", "", "Override encoder.family (hevc, av1)")
	cmd.Flags().StringVar(&hardware, "hardware", "", "Override encoder.hardware (none, amd, nvidia)")
	return cmd
}

func expandAll(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		expanded, err := config.ExpandPath(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, expanded)
	}
	return out, nil
}

// outcomeError converts a settled result into the command error.
func outcomeError(res operation.Result) error {
	switch res.Outcome {
	case operation.OutcomeDone:
		return nil
	case operation.OutcomeCancelled:
		return context.Canceled
	default:
		if res.Err == nil {
			return errors.New("operation failed")
		}
		if hint := failureHint(res.Err); hint != "" {
			return fmt.Errorf("%w\nhint: %s", res.Err, hint)
		}
		return res.Err
	}
}

func failureHint(err error) string {
	switch services.FailureKind(err) {
	case "external_tool":
		return "run `reelpack doctor` to check the ffmpeg installation and encoder support"
	case "configuration":
		return "check the [encoder] section with `reelpack config show`"
	case "not_found":
		return "verify the path exists"
	default:
		return ""
	}
}
