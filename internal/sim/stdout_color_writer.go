// ColorStdoutWriter prints human-friendly, colorized telemetry to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"aethersim/internal/config"
	"aethersim/internal/feedback"
	"aethersim/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints telemetry rows using ANSI colors.
type ColorStdoutWriter struct {
	cfg         *config.SimulationConfig
	out         io.Writer
	once        sync.Once
	squadColors map[string]string
	colorIdx    int
}

var squadPalette = []string{colorRed, colorGreen, colorYellow, colorBlue, colorMagenta, colorCyan}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.SimulationConfig) *ColorStdoutWriter {
	return &ColorStdoutWriter{
		cfg:         cfg,
		out:         os.Stdout,
		squadColors: make(map[string]string),
	}
}

func (w *ColorStdoutWriter) getSquadColor(name string) string {
	if c, ok := w.squadColors[name]; ok {
		return c
	}
	c := squadPalette[w.colorIdx%len(squadPalette)]
	w.squadColors[name] = c
	w.colorIdx++
	return c
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}

	fmt.Fprintln(w.out, "Simulation Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Focus Threshold:\t%.2f\n", w.cfg.Scoring.FocusThreshold)
	fmt.Fprintf(tw, "Release Threshold:\t%.2f\n", w.cfg.Scoring.ReleaseThreshold)
	fmt.Fprintf(tw, "Top K Targets:\t%d\n", w.cfg.Scoring.TopK)
	fmt.Fprintf(tw, "Heartbeat Timeout (s):\t%d\n", w.cfg.Roster.HeartbeatTimeoutS)
	fmt.Fprintf(tw, "Rotation Interval (ticks):\t%d\n", w.cfg.Roster.RotationIntervalTicks)
	fmt.Fprintf(tw, "Outcome Window (ticks):\t%d\n", w.cfg.Outcome.WindowTicks)
	fmt.Fprintf(tw, "Distance Metric:\t%s\n", w.cfg.DistanceMetric)
	tw.Flush()

	fmt.Fprintln(w.out, "\nSquads:")
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name\tHome Zone\tAgents\n")
	for _, sq := range w.cfg.Squads {
		col := w.getSquadColor(sq.Name)
		fmt.Fprintf(tw, "%s%s%s\t%s\t%d\n", col, sq.Name, colorReset, sq.HomeZone, sq.Total())
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

// Write outputs a single agent telemetry row in colorized format.
func (w *ColorStdoutWriter) Write(row telemetry.AgentRow) error {
	w.once.Do(w.printOverview)

	sqColor := w.getSquadColor(row.Squad)
	statusColor := colorGreen
	switch row.Status {
	case "offline":
		statusColor = colorRed
	case "degraded":
		statusColor = colorYellow
	}

	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, row.Timestamp.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%scluster=%s%s ", colorBlue, row.ClusterID, colorReset)
	fmt.Fprintf(w.out, "%ssquad=%s%s ", sqColor, row.Squad, colorReset)
	fmt.Fprintf(w.out, "%sagent=%s%s ", colorWhite(), row.AgentID, colorReset)
	fmt.Fprintf(w.out, "%srole=%s%s ", colorMagenta, row.Role, colorReset)
	fmt.Fprintf(w.out, "%slat=%.5f%s ", colorGreen, row.Lat, colorReset)
	fmt.Fprintf(w.out, "%slon=%.5f%s ", colorYellow, row.Lon, colorReset)
	fmt.Fprintf(w.out, "%swear=%.1f%s ", colorCyan, row.Wear, colorReset)
	fmt.Fprintf(w.out, "%sstatus=%s%s", statusColor, row.Status, colorReset)
	if row.CellKey != "" {
		fmt.Fprintf(w.out, " %scell=%s%s", colorMagenta, row.CellKey, colorReset)
	}
	if row.Pattern != "" {
		fmt.Fprintf(w.out, " %spattern=%s%s", colorBlue, row.Pattern, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

func colorWhite() string { return "\x1b[37m" }

// WriteBatch outputs multiple agent telemetry rows.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.AgentRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteTarget prints a scored target to STDOUT.
func (w *ColorStdoutWriter) WriteTarget(row telemetry.TargetRow) error {
	w.once.Do(w.printOverview)
	focusTag := ""
	if row.Focus {
		focusTag = fmt.Sprintf(" %sFOCUS%s", colorRed, colorReset)
	}
	fmt.Fprintf(w.out, "%s[%s]%s %sTARGET%s cell=%s score=%.3f cape=%.0f vort=%.5f rh=%.2f%s\n",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorYellow, colorReset, row.CellKey, row.Score,
		row.CAPE, row.Vorticity, row.Humidity, focusTag)
	return nil
}

// WriteTargets prints multiple scored targets.
func (w *ColorStdoutWriter) WriteTargets(rows []telemetry.TargetRow) error {
	for _, r := range rows {
		_ = w.WriteTarget(r)
	}
	return nil
}

// WriteEvent prints a coordination event to STDOUT.
func (w *ColorStdoutWriter) WriteEvent(e telemetry.EventRow) error {
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[%s]%s %sEVENT%s type=%s agents=%s",
		colorGray, e.Timestamp.Format(time.RFC3339), colorReset,
		colorCyan, colorReset, e.EventType, strings.Join(e.AgentIDs, ","))
	if e.CellKey != "" {
		fmt.Fprintf(w.out, " cell=%s", e.CellKey)
	}
	if e.Detail != "" {
		fmt.Fprintf(w.out, " detail=%q", e.Detail)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteEvents prints multiple coordination events.
func (w *ColorStdoutWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, e := range rows {
		_ = w.WriteEvent(e)
	}
	return nil
}

// WriteOutcome prints an outcome record to STDOUT.
func (w *ColorStdoutWriter) WriteOutcome(rec feedback.OutcomeRecord) error {
	w.once.Do(w.printOverview)
	resColor := colorGreen
	switch rec.Result {
	case feedback.ResultFailure:
		resColor = colorRed
	case feedback.ResultInconclusive:
		resColor = colorGray
	}
	fmt.Fprintf(w.out, "%s[%s]%s %sOUTCOME%s agent=%s cell=%s result=%s%s%s score=%.3f dur=%.0fs\n",
		colorGray, rec.Timestamp.Format(time.RFC3339), colorReset,
		colorMagenta, colorReset, rec.AgentID, rec.CellKey,
		resColor, rec.Result, colorReset, rec.Score, rec.DurationS)
	return nil
}

// WriteOutcomes prints multiple outcome records.
func (w *ColorStdoutWriter) WriteOutcomes(recs []feedback.OutcomeRecord) error {
	for _, r := range recs {
		_ = w.WriteOutcome(r)
	}
	return nil
}

// WriteCycle prints cycle state metrics to STDOUT.
func (w *ColorStdoutWriter) WriteCycle(row telemetry.CycleRow) error {
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[%s]%s %sCYCLE%s n=%d phase=%s cells=%d targets=%d assigned=%d avg_cape=%.0f chaos=%t\n",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorBlue, colorReset, row.Cycle, row.Phase, row.CellCount,
		row.TargetCount, row.AssignmentCount, row.AvgCAPE, row.ChaosMode)
	return nil
}
