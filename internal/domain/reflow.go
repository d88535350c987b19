package domain

import "strings"

// LineWidth is the number of characters that fit on one display row.
const LineWidth = 16

// Wrap greedily word-wraps text into lines of at most width characters.
// Words are split on single spaces, so runs of spaces produce empty words that
// are kept. A word longer than width sits alone on its own line, unmodified.
// Empty input yields no lines.
func Wrap(text string, width int) []string {
	if text == "" {
		return nil
	}

	var (
		lines   []string
		current strings.Builder
		started bool
	)
	for _, word := range strings.Split(text, " ") {
		switch {
		case !started:
			current.WriteString(word)
			started = true
		case current.Len()+1+len(word) <= width:
			current.WriteByte(' ')
			current.WriteString(word)
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
		}
	}
	return append(lines, current.String())
}

// ComposeLines builds the display line buffer for one cycle: the wrapped
// observation, a blank separator when both reports are present, then the
// wrapped forecast.
func ComposeLines(reports Reports, width int) []string {
	var lines []string
	if reports.Observation != nil {
		lines = append(lines, Wrap(reports.Observation.Text, width)...)
	}
	if reports.Observation != nil && reports.Forecast != nil {
		lines = append(lines, "")
	}
	if reports.Forecast != nil {
		lines = append(lines, Wrap(reports.Forecast.Text, width)...)
	}
	return lines
}
