package workflow

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PhaseReport records one phase's outcome.
type PhaseReport struct {
	Phase     string
	Ran       bool
	Total     int
	Succeeded int
	Skipped   int
}

// Label renders the phase name for summary output.
func (p PhaseReport) Label() string {
	return cases.Title(language.Und).String(strings.ReplaceAll(p.Phase, "_", " "))
}

// Summary is the per-phase gating line.
func (p PhaseReport) Summary() string {
	if !p.Ran {
		return "skipped"
	}
	return fmt.Sprintf("%d of %d processed successfully", p.Succeeded, p.Total)
}

// Complete reports whether every counted item in the phase succeeded.
func (p PhaseReport) Complete() bool {
	return p.Succeeded == p.Total
}

// RunReport aggregates a whole run for CLI rendering and the journal.
type RunReport struct {
	RunID   string
	Phases  []PhaseReport
	Outcome string
}

func (r *RunReport) addPhase(report PhaseReport) {
	r.Phases = append(r.Phases, report)
}

// Phase returns the report for the named phase, if it was recorded.
func (r *RunReport) Phase(name string) (PhaseReport, bool) {
	for _, phase := range r.Phases {
		if phase.Phase == name {
			return phase, true
		}
	}
	return PhaseReport{}, false
}
