package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var flags timelineFlags

	cmd := &cobra.Command{
		Use:   "plan SOURCE",
		Short: "Show the clips of a timeline and what an export would render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prober durationProber
			if flags.duration == 0 && flags.file == "" {
				prober = ctx.newEngine()
			}
			tl, err := flags.build(cmd.Context(), prober, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderPlan(tl))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// renderPlan lists every clip and summarises the export path the timeline
// takes: nothing to export, source passthrough, a single trim, or trims
// joined in timeline order.
func renderPlan(tl *timeline.Timeline) string {
	rows := make([][]string, 0, tl.Len())
	var order []string
	for i, c := range tl.Clips() {
		action := "skip"
		if !c.Hidden {
			order = append(order, strconv.Itoa(i))
			action = fmt.Sprintf("trim #%d", len(order))
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			formatSeconds(c.Range.Start),
			formatSeconds(c.Range.End),
			formatSeconds(c.Range.Duration()),
			yesNo(!c.Hidden),
			action,
		})
	}

	var b strings.Builder
	b.WriteString(renderTable(
		[]string{"Clip", "Start", "End", "Length", "Visible", "Action"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
	b.WriteString("\n")

	switch {
	case len(order) == 0:
		b.WriteString("Nothing to export: every clip is hidden.\n")
	case !tl.HasHidden():
		b.WriteString("No hidden clips: the source is delivered unchanged.\n")
	case len(order) == 1:
		fmt.Fprintf(&b, "One visible clip: trim %s is the output, no merge.\n", order[0])
	default:
		fmt.Fprintf(&b, "%d trims merged in order %s.\n", len(order), strings.Join(order, ", "))
	}
	return b.String()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
