// Package scene parses Sentinel-1 scene identifiers.
//
// A scene name is a fixed grammar of underscore-separated tokens:
//
//	S1A_IW_SLC__1SDV_20250524T170739_20250524T170806_059339_075D5F_E4AE
//	^^^ ^^ ^^^  ^^^^ ^^^^^^^^^^^^^^^ ^^^^^^^^^^^^^^^ ^^^^^^ ^^^^^^ ^^^^
//	sat mode level product start     stop            orbit  mission unique
//
// Parsing is strict: a name either matches the whole grammar and yields a
// typed Identity, or it fails with a structured error. There is no partial
// match.
package scene

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PolarisationLabels maps product-type tokens to polarisation channel labels.
var PolarisationLabels = map[string]string{
	"1SDV": "VV+VH",
	"1SDH": "HH+HV",
	"1SSV": "VV",
	"1SSH": "HH",
}

// SafeSuffix is stripped from catalog names before parsing.
const SafeSuffix = ".SAFE"

const timestampLayout = "20060102T150405"

// Identity is the typed decomposition of a scene name.
type Identity struct {
	Name          string
	Satellite     string
	Mode          string
	Level         string
	Product       string
	StartTime     time.Time
	StopTime      time.Time
	AbsoluteOrbit int
	MissionID     string
	UniqueID      string
}

// ParseError describes a scene name that does not match the grammar.
type ParseError struct {
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("scene name %q: %s", e.Name, e.Reason)
}

var namePattern = regexp.MustCompile(
	`^(S1[AB])_(IW|EW|SM|WV)_(SLC|GRD|OCN|RAW)_+(1S[DS][VH])_` +
		`(\d{8}T\d{6})_(\d{8}T\d{6})_(\d{6})_([0-9A-F]{6})_([0-9A-F]{4})$`)

// Parse validates name against the full scene grammar. The name may carry a
// trailing .SAFE suffix, which is stripped before matching.
func Parse(name string) (Identity, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(name), SafeSuffix)
	if trimmed == "" {
		return Identity{}, &ParseError{Name: name, Reason: "empty name"}
	}

	match := namePattern.FindStringSubmatch(trimmed)
	if match == nil {
		return Identity{}, &ParseError{Name: trimmed, Reason: "does not match scene grammar"}
	}

	start, err := time.Parse(timestampLayout, match[5])
	if err != nil {
		return Identity{}, &ParseError{Name: trimmed, Reason: fmt.Sprintf("start timestamp: %v", err)}
	}
	stop, err := time.Parse(timestampLayout, match[6])
	if err != nil {
		return Identity{}, &ParseError{Name: trimmed, Reason: fmt.Sprintf("stop timestamp: %v", err)}
	}
	if stop.Before(start) {
		return Identity{}, &ParseError{Name: trimmed, Reason: "stop timestamp precedes start"}
	}

	orbit, err := strconv.Atoi(match[7])
	if err != nil {
		return Identity{}, &ParseError{Name: trimmed, Reason: fmt.Sprintf("absolute orbit: %v", err)}
	}

	return Identity{
		Name:          trimmed,
		Satellite:     match[1],
		Mode:          match[2],
		Level:         match[3],
		Product:       match[4],
		StartTime:     start.UTC(),
		StopTime:      stop.UTC(),
		AbsoluteOrbit: orbit,
		MissionID:     match[8],
		UniqueID:      match[9],
	}, nil
}

// ParsePrefix matches the scene grammar at the start of a derived filename,
// ignoring any processing suffix appended after the unique-id token
// (e.g. "<scene>_orb_cal_dB_tc_subset.tif").
func ParsePrefix(filename string) (Identity, error) {
	base := strings.TrimSpace(filename)
	if base == "" {
		return Identity{}, &ParseError{Name: filename, Reason: "empty name"}
	}
	loc := prefixPattern.FindString(base)
	if loc == "" {
		return Identity{}, &ParseError{Name: base, Reason: "no scene identifier prefix"}
	}
	return Parse(loc)
}

var prefixPattern = regexp.MustCompile(
	`^S1[AB]_(?:IW|EW|SM|WV)_(?:SLC|GRD|OCN|RAW)_+1S[DS][VH]_` +
		`\d{8}T\d{6}_\d{8}T\d{6}_\d{6}_[0-9A-F]{6}_[0-9A-F]{4}`)

// AcquisitionTime returns the start timestamp formatted as
// YYYY-MM-DDThh:mm:ss, the textual form recorded in statistics tables.
func (id Identity) AcquisitionTime() string {
	return id.StartTime.Format("2006-01-02T15:04:05")
}

// Polarisation maps the product token to its channel label (e.g. 1SDV ->
// VV+VH). Unknown products return the raw token.
func (id Identity) Polarisation() string {
	if label, ok := PolarisationLabels[id.Product]; ok {
		return label
	}
	return id.Product
}

// RelativeOrbit derives the repeat-cycle track number from the absolute
// orbit. The offsets differ per spacecraft.
func (id Identity) RelativeOrbit() int {
	switch id.Satellite {
	case "S1A":
		return (id.AbsoluteOrbit-73)%175 + 1
	case "S1B":
		return (id.AbsoluteOrbit-27)%175 + 1
	default:
		return 0
	}
}
