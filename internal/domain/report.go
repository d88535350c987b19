package domain

import (
	"strings"
	"time"
)

// ReportKind identifies one of the two report types shown on the display.
type ReportKind string

const (
	// Observation is the current-conditions METAR.
	Observation ReportKind = "metar"
	// Forecast is the terminal aerodrome forecast (TAF).
	Forecast ReportKind = "taf"
)

// ReportKinds lists the kinds in display and fetch order.
var ReportKinds = []ReportKind{Observation, Forecast}

// Snapshot is the last good text of one report kind.
type Snapshot struct {
	Text      string
	FetchedAt time.Time
}

// Reports is the result of one fetch cycle. A nil field means no report of
// that kind has ever been obtained.
type Reports struct {
	Observation *Snapshot
	Forecast    *Snapshot
}

// Any reports whether at least one report is present.
func (r Reports) Any() bool {
	return r.Observation != nil || r.Forecast != nil
}

// Get returns the snapshot for kind.
func (r Reports) Get(kind ReportKind) *Snapshot {
	switch kind {
	case Observation:
		return r.Observation
	case Forecast:
		return r.Forecast
	default:
		return nil
	}
}

// FormatReport turns the raw text returned by the API into display text:
// trailing spaces are trimmed, observations get their "METAR " prefix and
// both kinds get the "=" terminator.
func FormatReport(kind ReportKind, raw string) string {
	raw = strings.TrimRight(raw, " ")
	if kind == Observation {
		return "METAR " + raw + "="
	}
	return raw + "="
}
