package telemetry

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// DashboardHandler serves a single-page HTML dashboard of recent planner
// activity for sessionID: speed and accel line charts plus an FCW firing
// histogram, rendered as one components.Page.
func (s *Store) DashboardHandler(sessionID string, recentLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := s.RecentTicks(sessionID, recentLimit)
		if err != nil {
			http.Error(w, fmt.Sprintf("load recent ticks: %v", err), http.StatusInternalServerError)
			return
		}
		p50, p85, p98, err := s.VCruiseQuantiles(sessionID)
		if err != nil {
			http.Error(w, fmt.Sprintf("load v_cruise quantiles: %v", err), http.StatusInternalServerError)
			return
		}

		// RecentTicks returns newest-first; the chart wants oldest-first.
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}

		x := make([]string, len(rows))
		vCruise := make([]opts.LineData, len(rows))
		vTarget := make([]opts.LineData, len(rows))
		aTarget := make([]opts.LineData, len(rows))
		for i, row := range rows {
			x[i] = time.Unix(0, row.TsUnixNano).Format("15:04:05.000")
			vCruise[i] = opts.LineData{Value: row.VCruise}
			vTarget[i] = opts.LineData{Value: row.VTarget}
			aTarget[i] = opts.LineData{Value: row.ATarget}
		}

		speed := charts.NewLine()
		speed.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
			charts.WithTitleOpts(opts.Title{Title: "Planner speed", Subtitle: fmt.Sprintf("session=%s p50=%.1f p85=%.1f p98=%.1f m/s", sessionID, p50, p85, p98)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		)
		speed.SetXAxis(x).
			AddSeries("v_cruise", vCruise).
			AddSeries("v_target", vTarget)

		accel := charts.NewLine()
		accel.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
			charts.WithTitleOpts(opts.Title{Title: "Target acceleration"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		)
		accel.SetXAxis(x).AddSeries("a_target", aTarget)

		fcwCounts, err := s.fcwCountsByMinute(sessionID)
		if err != nil {
			http.Error(w, fmt.Sprintf("load fcw events: %v", err), http.StatusInternalServerError)
			return
		}
		fcwX := make([]string, 0, len(fcwCounts))
		fcwY := make([]opts.BarData, 0, len(fcwCounts))
		for _, c := range fcwCounts {
			fcwX = append(fcwX, c.minute)
			fcwY = append(fcwY, opts.BarData{Value: c.count})
		}
		fcw := charts.NewBar()
		fcw.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
			charts.WithTitleOpts(opts.Title{Title: "FCW firings per minute"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		fcw.SetXAxis(fcwX).AddSeries("fcw", fcwY)

		page := components.NewPage()
		page.AddCharts(speed, accel, fcw)

		var buf bytes.Buffer
		if err := page.Render(&buf); err != nil {
			http.Error(w, fmt.Sprintf("render dashboard: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}

type minuteCount struct {
	minute string
	count  int
}

func (s *Store) fcwCountsByMinute(sessionID string) ([]minuteCount, error) {
	rows, err := s.db.Query(
		`SELECT ts_unix_nano FROM fcw_events WHERE session_id = ? ORDER BY ts_unix_nano ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query fcw events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	var order []string
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan fcw event: %w", err)
		}
		minute := time.Unix(0, ts).Format("15:04")
		if _, ok := counts[minute]; !ok {
			order = append(order, minute)
		}
		counts[minute]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]minuteCount, len(order))
	for i, m := range order {
		out[i] = minuteCount{minute: m, count: counts[m]}
	}
	return out, nil
}
