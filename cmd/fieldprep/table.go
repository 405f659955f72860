package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"fieldprep/internal/journal"
	"fieldprep/internal/workflow"
)

// renderRunReport renders the per-phase summary table followed by the run
// outcome line.
func renderRunReport(report *workflow.RunReport) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Phase", "Items", "Succeeded", "Skipped", "Summary"})

	colorize := stdoutIsTerminal()
	for _, phase := range report.Phases {
		summary := phase.Summary()
		if colorize && phase.Ran && !phase.Complete() {
			summary = text.FgRed.Sprint(summary)
		}
		tw.AppendRow(table.Row{
			phase.Label(),
			itemCount(phase),
			strconv.Itoa(phase.Succeeded),
			strconv.Itoa(phase.Skipped),
			summary,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	outcome := report.Outcome
	if colorize {
		switch outcome {
		case journal.OutcomeSuccess:
			outcome = text.FgGreen.Sprint(outcome)
		case journal.OutcomeFailed:
			outcome = text.FgRed.Sprint(outcome)
		}
	}
	return fmt.Sprintf("%s\nRun %s: %s", tw.Render(), report.RunID, outcome)
}

func itemCount(phase workflow.PhaseReport) string {
	if !phase.Ran {
		return "-"
	}
	return strconv.Itoa(phase.Total)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
