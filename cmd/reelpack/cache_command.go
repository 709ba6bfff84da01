package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelpack/internal/staging"
	"reelpack/internal/workflow"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear preview and scratch directories",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCachePurgeCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show preview folders and leftover pack scratch directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := printDirectories(out, "Preview cache", cfg.Paths.PreviewDir); err != nil {
				return err
			}
			return printDirectories(out, "Pack scratch", cfg.PackScratchDir())
		},
	}
}

func printDirectories(out io.Writer, title, dir string) error {
	dirs, err := staging.ListDirectories(dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%s):\n", title, dir)
	if len(dirs) == 0 {
		fmt.Fprintln(out, "  empty")
		return nil
	}
	rows := make([][]string, 0, len(dirs))
	var total int64
	for _, d := range dirs {
		total += d.Size
		rows = append(rows, []string{d.Name, strconv.Itoa(d.Files), humanize.IBytes(uint64(d.Size)), humanize.Time(d.ModTime)})
	}
	rows = append(rows, []string{"total", "", humanize.IBytes(uint64(total)), ""})
	fmt.Fprintln(out, renderTable([]string{"Folder", "Files", "Size", "Modified"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
	return nil
}

func newCachePurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove every cached preview frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(_ context.Context, mgr *workflow.Manager) error {
				if err := mgr.PurgePreviews(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Preview cache cleared (%s)\n", mgr.Config().Paths.PreviewDir)
				return nil
			})
		},
	}
}
