package display

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Outcome is how a display stage ended.
type Outcome int

const (
	// OutcomeCompleted means every page was shown.
	OutcomeCompleted Outcome = iota
	// OutcomeCancelled means the button was pressed between pages.
	OutcomeCancelled
	// OutcomeFailed means drawing failed or the context ended; Result.Err says which.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of one Pager.Show call.
type Result struct {
	Outcome Outcome
	Err     error
}

// Pager pages wrapped report lines across the panel.
type Pager struct {
	surface  Surface
	button   Button
	clock    clockwork.Clock
	interval time.Duration
	metrics  *observability.Metrics
}

// NewPager creates a pager that holds each page for interval.
func NewPager(surface Surface, button Button, clock clockwork.Clock, interval time.Duration, metrics *observability.Metrics) *Pager {
	return &Pager{
		surface:  surface,
		button:   button,
		clock:    clock,
		interval: interval,
		metrics:  metrics,
	}
}

// Show displays lines. When they fit on one page it is held for twice the
// scroll interval; otherwise pages of PageRows lines are shown in turn, each
// for one interval. The button is sampled after every hold and a press ends
// paging with OutcomeCancelled.
func (p *Pager) Show(ctx context.Context, lines []string) Result {
	if len(lines) <= PageRows {
		return p.showPage(ctx, lines, 0, 2*p.interval)
	}
	for start := 0; start < len(lines); start += PageRows {
		if res := p.showPage(ctx, lines, start, p.interval); res.Outcome != OutcomeCompleted {
			return res
		}
	}
	return Result{Outcome: OutcomeCompleted}
}

func (p *Pager) showPage(ctx context.Context, lines []string, start int, hold time.Duration) Result {
	if err := Render(p.surface, Page(lines, start)); err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("render page at line %d: %w", start, err)}
	}
	p.metrics.PagesRendered.Inc()

	if err := domain.Sleep(ctx, p.clock, hold); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	if p.button.Pressed() {
		return Result{Outcome: OutcomeCancelled}
	}
	return Result{Outcome: OutcomeCompleted}
}

// Page lays out the window of lines beginning at start: PageRows full rows
// and, when there is one, the next line in the clipped bottom row.
func Page(lines []string, start int) Screen {
	var screen Screen
	for i := 0; i <= PageRows; i++ {
		idx := start + i
		if idx >= len(lines) {
			break
		}
		y := i * RowHeight
		if i == PageRows {
			y = ClippedRowY
		}
		screen.Lines = append(screen.Lines, Line{Text: lines[idx], Y: y})
	}
	return screen
}
