package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks fatal configuration problems; the run never starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrDiscovery marks catalog discovery failures; there are no items to process.
	ErrDiscovery = errors.New("discovery error")
	// ErrExternalTool marks non-zero exits or launch failures of external processes.
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation marks malformed results from otherwise-successful operations.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks missing files or directories the pipeline expected.
	ErrNotFound = errors.New("not found")
	// ErrNoWork marks an extraction phase that found zero eligible files.
	ErrNoWork = errors.New("no work found")
	// ErrInterrupted marks a run terminated by an external signal.
	ErrInterrupted = errors.New("interrupted")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error should abort the whole run immediately
// rather than being isolated to the current item or file. Cancellation
// counts as fatal so an interrupted download stops the phase loop.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrDiscovery) ||
		errors.Is(err, ErrNoWork) ||
		errors.Is(err, ErrInterrupted) ||
		errors.Is(err, context.Canceled)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
