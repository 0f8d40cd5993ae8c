package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/channel"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/fetch"
	"github.com/heimdex/heimdex-editor/internal/scratch"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var flags timelineFlags
	var outputDir string
	var name string

	cmd := &cobra.Command{
		Use:   "export SOURCE",
		Short: "Render the visible clips of a timeline into one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			cfg := ctx.config
			logger := ctx.loggerValue()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if name == "" {
				base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
				name = base + "_edit"
			}
			outPath, err := export.OutputPath(outputDir, name, fetch.Ext(source))
			if err != nil {
				return err
			}

			eng := ctx.newEngine()
			tl, err := flags.build(runCtx, eng, source)
			if err != nil {
				return err
			}

			store, err := scratch.Open(cfg.ScratchDir(), logger)
			if err != nil {
				return fmt.Errorf("open scratch space: %w", err)
			}
			defer store.Close()
			store.CleanStale(cfg.StaleScratchAge())

			database, repo, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer database.Close()

			orch := export.New(export.Config{
				Engine:           eng,
				Fetcher:          fetch.New(fetch.Config{Timeout: cfg.FetchTimeout(), Logger: logger}),
				Store:            store,
				Recorder:         repo,
				MaxParallelTrims: cfg.MaxParallelTrims(),
				Logger:           logger,
			})

			events := channel.NewQueue(64)
			defer events.Close()
			if _, err := orch.Start(runCtx, export.StartRequest{SourceRef: source, Timeline: tl}, events); err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			final, ok := events.WaitTerminal(context.Background(), func(e channel.Event) {
				if p := e.Progress; p != nil {
					fmt.Fprintf(stderr, "%-10s %d/%d\n", p.Stage, p.Completed, p.Total)
				}
			})
			if !ok {
				return fmt.Errorf("export ended without a result")
			}
			if final.Type == channel.TypeExportFailed {
				if final.Error.Kind == export.KindCancelled {
					return context.Canceled
				}
				return fmt.Errorf("export failed (%s): %s", final.Error.Kind, final.Error.Message)
			}

			if err := os.WriteFile(outPath, final.Binary, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", outPath, len(final.Binary))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for the exported video")
	cmd.Flags().StringVar(&name, "name", "", "Output file name (default: <source>_edit)")
	return cmd
}
