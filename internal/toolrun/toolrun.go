// Package toolrun executes external processing tools with a path-to-path
// contract. The pipeline treats every tool as opaque: it is handed an input
// and an output location, and either exits zero with the output in place or
// fails with exit detail.
package toolrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Invocation describes one external tool run.
type Invocation struct {
	Binary string
	Args   []string
}

// Result captures the outcome of a completed invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Command returns a printable rendering of the invocation for logs.
func (inv Invocation) Command() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Binary)
	for _, arg := range inv.Args {
		if strings.ContainsAny(arg, " \t") {
			parts = append(parts, fmt.Sprintf("%q", arg))
		} else {
			parts = append(parts, arg)
		}
	}
	return strings.Join(parts, " ")
}

// Runner executes external tools. The single implementation shells out; tests
// substitute stub binaries on PATH instead of mocking this interface.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// New returns the process-backed runner.
func New() Runner {
	return execRunner{}
}

type execRunner struct{}

// Run blocks until the tool exits. A non-zero exit returns both the populated
// Result and an error carrying the exit detail; launch failures return an
// error with ExitCode -1.
func (execRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	binary := strings.TrimSpace(inv.Binary)
	if binary == "" {
		return Result{ExitCode: -1}, errors.New("toolrun: empty binary")
	}

	cmd := exec.CommandContext(ctx, binary, inv.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("%s exited with status %d: %s", binary, result.ExitCode, firstLine(result.Stderr))
		}
		result.ExitCode = -1
		return result, fmt.Errorf("launch %s: %w", binary, err)
	}
	return result, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
