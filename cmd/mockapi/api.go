package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

type api struct {
	clock     clockwork.Clock
	logger    *slog.Logger
	missing   map[string]bool
	failEvery int
	latency   time.Duration
	requests  atomic.Int64
}

func newAPI(clock clockwork.Clock, logger *slog.Logger) *api {
	return &api{clock: clock, logger: logger, missing: map[string]bool{}}
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metar", a.handle(func(station string, now time.Time) any {
		return map[string]string{"icaoId": station, "rawOb": observation(station, now)}
	}))
	mux.HandleFunc("GET /taf", a.handle(func(station string, now time.Time) any {
		return map[string]string{"icaoId": station, "rawTAF": forecast(station, now)}
	}))
	return mux
}

func (a *api) handle(report func(station string, now time.Time) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := a.requests.Add(1)
		if a.latency > 0 {
			a.clock.Sleep(a.latency)
		}

		station := strings.ToUpper(r.URL.Query().Get("ids"))
		a.logger.Info("request", "path", r.URL.Path, "station", station, "user_agent", r.UserAgent())

		if a.failEvery > 0 && n%int64(a.failEvery) == 0 {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("format") != "json" {
			http.Error(w, "only format=json is supported", http.StatusBadRequest)
			return
		}

		body := []any{}
		if station != "" && !a.missing[station] {
			body = append(body, report(station, a.clock.Now().UTC()))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}

// observation synthesizes a plausible METAR body for the half hour before now.
func observation(station string, now time.Time) string {
	issued := now.Truncate(30 * time.Minute)
	wind := (issued.Hour()*30 + 10) % 360
	return fmt.Sprintf("%s %s %03d04MPS CAVOK %02d/%02d Q1012",
		station, issued.Format("021504Z"), wind, 18+issued.Hour()%8, 10+issued.Hour()%4)
}

// forecast synthesizes a 24 hour TAF issued at the last six-hour boundary.
func forecast(station string, now time.Time) string {
	issued := now.Truncate(6 * time.Hour)
	from := issued.Add(time.Hour)
	to := from.Add(24 * time.Hour)
	return fmt.Sprintf("TAF %s %s %s/%s 18004MPS 9999 SCT040 BECMG %s/%s 24006MPS",
		station, issued.Format("021504Z"),
		from.Format("0215"), to.Format("0215"),
		from.Add(6*time.Hour).Format("0215"), from.Add(8*time.Hour).Format("0215"))
}
