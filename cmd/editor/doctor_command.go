package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/engine"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and ffprobe are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			caps, err := ctx.newEngine().ProbeCapabilities(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCapabilities(caps))
			if !caps.CanExport() {
				return errors.New("ffmpeg is not available; exports will fail")
			}
			return nil
		},
	}
}

func renderCapabilities(caps *engine.Capabilities) string {
	row := func(name string, t engine.ToolInfo) []string {
		return []string{name, yesNo(t.Available), t.Version, t.Path, t.Error}
	}
	return renderTable(
		[]string{"Tool", "Available", "Version", "Path", "Error"},
		[][]string{row("ffmpeg", caps.FFmpeg), row("ffprobe", caps.FFprobe)},
		nil,
	)
}
