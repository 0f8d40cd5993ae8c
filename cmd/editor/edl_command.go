package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/export"
)

func newEDLCommand(ctx *commandContext) *cobra.Command {
	var flags timelineFlags
	var title string
	var fps float64
	var outPath string

	cmd := &cobra.Command{
		Use:   "edl SOURCE",
		Short: "Render the visible clips of a timeline as a CMX3600 EDL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			var prober durationProber
			if flags.duration == 0 && flags.file == "" {
				prober = ctx.newEngine()
			}
			tl, err := flags.build(cmd.Context(), prober, source)
			if err != nil {
				return err
			}

			if title == "" {
				title = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
			}
			body := export.GenerateEDL(tl.Clips(), export.EDLOptions{
				Title:      title,
				FrameRate:  fps,
				SourcePath: source,
			})

			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), body)
				return nil
			}
			if err := os.WriteFile(outPath, []byte(body), 0o644); err != nil {
				return fmt.Errorf("write EDL: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outPath)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "EDL title (default: source file name)")
	cmd.Flags().Float64Var(&fps, "fps", 30, "Frame rate for timecodes")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the EDL to this file instead of stdout")
	return cmd
}
