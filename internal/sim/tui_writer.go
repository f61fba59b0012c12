package sim

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"aethersim/internal/atmosphere"
	"aethersim/internal/config"
	"aethersim/internal/feedback"
	"aethersim/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries an agent log line for the viewport.
type logMsg struct{ line string }

// targetMsg carries a target log line and row data.
type targetMsg struct {
	line string
	row  telemetry.TargetRow
}

// eventMsg carries a coordination event log line.
type eventMsg struct{ line string }

// cycleMsg carries a cycle state update.
type cycleMsg struct{ telemetry.CycleRow }

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

type setInjectMsg struct{ fn func(atmosphere.Cell) }
type agentMsg struct{ telemetry.AgentRow }

const (
	fallbackCellInput   = "47.5,13.0,3000,0.9"
	maxSectionHeightPct = 0.2
	bgRed               = "\x1b[41m"
	bgYellow            = "\x1b[43m"
	bgGreen             = "\x1b[42m"
)

// TUIWriter renders telemetry using a bubbletea TUI.
type TUIWriter struct {
	program     teaProgram
	squadColors map[string]string
	colorIdx    int
	done        chan struct{}
	sendSignal  atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.SimulationConfig) *TUIWriter {
	sc := make(map[string]string)
	w := &TUIWriter{squadColors: sc, done: make(chan struct{})}
	w.sendSignal.Store(true)
	m := newTUIModel(cfg, sc)
	p := tea.NewProgram(m, tea.WithAltScreen())
	w.program = p
	for _, sq := range cfg.Squads {
		w.getSquadColor(sq.Name)
	}
	go func() {
		_ = p.Start()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

func (w *TUIWriter) getSquadColor(name string) string {
	if c, ok := w.squadColors[name]; ok {
		return c
	}
	c := squadPalette[w.colorIdx%len(squadPalette)]
	w.squadColors[name] = c
	w.colorIdx++
	return c
}

// Write implements TelemetryWriter.
func (w *TUIWriter) Write(row telemetry.AgentRow) error {
	sqColor := w.getSquadColor(row.Squad)
	statusColor := colorGreen
	switch row.Status {
	case "offline":
		statusColor = colorRed
	case "degraded":
		statusColor = colorYellow
	}

	line := fmt.Sprintf("%s[%s]%s %scluster=%s%s %ssquad=%s%s %sagent=%s%s %srole=%s%s %slat=%.5f%s %slon=%.5f%s %swear=%.1f%s %sstatus=%s%s",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorBlue, row.ClusterID, colorReset,
		sqColor, row.Squad, colorReset,
		colorWhite(), row.AgentID, colorReset,
		colorMagenta, row.Role, colorReset,
		colorGreen, row.Lat, colorReset,
		colorYellow, row.Lon, colorReset,
		colorCyan, row.Wear, colorReset,
		statusColor, row.Status, colorReset,
	)
	if row.CellKey != "" {
		line += fmt.Sprintf(" %scell=%s%s", colorMagenta, row.CellKey, colorReset)
	}
	if row.Pattern != "" {
		line += fmt.Sprintf(" %spattern=%s%s", colorBlue, row.Pattern, colorReset)
	}
	w.program.Send(logMsg{line: line})
	w.program.Send(agentMsg{row})
	return nil
}

// WriteBatch outputs multiple agent rows.
func (w *TUIWriter) WriteBatch(rows []telemetry.AgentRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteTarget implements TargetWriter.
func (w *TUIWriter) WriteTarget(row telemetry.TargetRow) error {
	focusTag := ""
	if row.Focus {
		focusTag = fmt.Sprintf(" %sFOCUS%s", colorRed, colorReset)
	}
	line := fmt.Sprintf("%s[%s]%s %sTARGET%s %scell=%s%s %sscore=%.3f%s %scape=%.0f%s %svort=%.5f%s %srh=%.2f%s%s",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorYellow, colorReset,
		colorWhite(), row.CellKey, colorReset,
		colorGreen, row.Score, colorReset,
		colorMagenta, row.CAPE, colorReset,
		colorCyan, row.Vorticity, colorReset,
		colorBlue, row.Humidity, colorReset,
		focusTag)
	w.program.Send(targetMsg{line: line, row: row})
	return nil
}

// WriteTargets outputs multiple target rows.
func (w *TUIWriter) WriteTargets(rows []telemetry.TargetRow) error {
	for _, r := range rows {
		_ = w.WriteTarget(r)
	}
	return nil
}

// WriteEvent implements EventWriter.
func (w *TUIWriter) WriteEvent(e telemetry.EventRow) error {
	line := fmt.Sprintf("%s[%s]%s %sEVENT%s %stype=%s%s %sagents=%v%s",
		colorGray, e.Timestamp.Format(time.RFC3339), colorReset,
		colorCyan, colorReset,
		colorBlue, e.EventType, colorReset,
		colorWhite(), e.AgentIDs, colorReset)
	if e.CellKey != "" {
		line += fmt.Sprintf(" %scell=%s%s", colorMagenta, e.CellKey, colorReset)
	}
	if e.Detail != "" {
		line += fmt.Sprintf(" %s%s%s", colorGray, e.Detail, colorReset)
	}
	w.program.Send(eventMsg{line: line})
	return nil
}

// WriteEvents outputs multiple coordination events.
func (w *TUIWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, e := range rows {
		_ = w.WriteEvent(e)
	}
	return nil
}

// WriteOutcome implements OutcomeWriter; outcomes share the event log.
func (w *TUIWriter) WriteOutcome(rec feedback.OutcomeRecord) error {
	resColor := colorGreen
	switch rec.Result {
	case feedback.ResultFailure:
		resColor = colorRed
	case feedback.ResultInconclusive:
		resColor = colorGray
	}
	line := fmt.Sprintf("%s[%s]%s %sOUTCOME%s agent=%s cell=%s %s%s%s score=%.3f",
		colorGray, rec.Timestamp.Format(time.RFC3339), colorReset,
		colorMagenta, colorReset, rec.AgentID, rec.CellKey,
		resColor, rec.Result, colorReset, rec.Score)
	w.program.Send(eventMsg{line: line})
	return nil
}

// WriteOutcomes outputs multiple outcome records.
func (w *TUIWriter) WriteOutcomes(recs []feedback.OutcomeRecord) error {
	for _, r := range recs {
		_ = w.WriteOutcome(r)
	}
	return nil
}

// WriteCycle implements CycleWriter.
func (w *TUIWriter) WriteCycle(row telemetry.CycleRow) error {
	w.program.Send(cycleMsg{CycleRow: row})
	return nil
}

// SetAdminStatus updates the admin UI indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// SetInjector registers a callback to inject synthetic cell readings.
func (w *TUIWriter) SetInjector(fn func(atmosphere.Cell)) {
	w.program.Send(setInjectMsg{fn: fn})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg            *config.SimulationConfig
	table          table.Model
	vp             viewport.Model
	targetVP       viewport.Model
	eventVP        viewport.Model
	logs           []string
	targetLogs     []string
	eventLogs      []string
	cycle          telemetry.CycleRow
	admin          bool
	wrap           bool
	autoscroll     bool
	header         string
	headerHeight   int
	height         int
	squadColors    map[string]string
	inject         func(atmosphere.Cell)
	cellInput      textinput.Model
	cellDialog     bool
	lastAgent      atmosphere.Position
	haveAgent      bool
	summary        bool
	help           bool
	showSquads     bool
	agentPositions map[string]atmosphere.Position
	agentWear      map[string]float64
	agentSquads    map[string]string
	focusCells     map[string]atmosphere.Position
	showMap        bool
	mapCenterLat   float64
	mapCenterLon   float64
	mapLatSpan     float64
	mapLonSpan     float64
	mapInitialized bool
	mapShowAgents  bool
	mapShowTargets bool
	mapShowZones   bool
	squadTotals    map[string]int
	squadCounts    map[string]map[string]struct{}
	focusCounts    int
}

func newTUIModel(cfg *config.SimulationConfig, squadColors map[string]string) tuiModel {
	cols := []table.Column{
		{Title: "Config", Width: 24},
		{Title: "Value", Width: 10},
		{Title: "Config", Width: 24},
		{Title: "Value", Width: 10},
	}
	rows := []table.Row{
		{"Focus Threshold", fmt.Sprintf("%.2f", cfg.Scoring.FocusThreshold), "Release Threshold", fmt.Sprintf("%.2f", cfg.Scoring.ReleaseThreshold)},
		{"Top K Targets", fmt.Sprintf("%d", cfg.Scoring.TopK), "Heartbeat Timeout (s)", fmt.Sprintf("%d", cfg.Roster.HeartbeatTimeoutS)},
		{"Rotation (ticks)", fmt.Sprintf("%d", cfg.Roster.RotationIntervalTicks), "Outcome Window (ticks)", fmt.Sprintf("%d", cfg.Outcome.WindowTicks)},
		{"Distance Metric", cfg.DistanceMetric, "Scenario", cfg.Scenario},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	vp := viewport.New(0, 0)
	targetVP := viewport.New(0, 0)
	eventVP := viewport.New(0, 0)
	squadTotals := make(map[string]int)
	for _, sq := range cfg.Squads {
		squadTotals[sq.Name] += sq.Total()
	}
	m := tuiModel{
		cfg:            cfg,
		table:          t,
		vp:             vp,
		targetVP:       targetVP,
		eventVP:        eventVP,
		squadColors:    squadColors,
		autoscroll:     true,
		showSquads:     true,
		mapShowAgents:  true,
		mapShowTargets: true,
		mapShowZones:   true,
		agentPositions: make(map[string]atmosphere.Position),
		agentWear:      make(map[string]float64),
		agentSquads:    make(map[string]string),
		focusCells:     make(map[string]atmosphere.Position),
		squadTotals:    squadTotals,
		squadCounts:    make(map[string]map[string]struct{}),
	}
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		tableWidth := msg.Width
		if m.showSquads {
			tableWidth = msg.Width / 2
		}
		m.table.SetWidth(tableWidth)
		m.vp.Width = msg.Width
		m.targetVP.Width = msg.Width
		m.eventVP.Width = msg.Width
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
		m.refreshTargets()
		m.refreshEvents()
	case tea.KeyMsg:
		if m.cellDialog {
			switch msg.Type {
			case tea.KeyEnter:
				c, err := parseCellInput(m.cellInput.Value())
				if err == nil && m.inject != nil {
					go m.inject(c)
				}
				m.cellDialog = false
				m.updateViewportHeight()
			case tea.KeyEsc:
				m.cellDialog = false
				m.updateViewportHeight()
			default:
				var cmd tea.Cmd
				m.cellInput, cmd = m.cellInput.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
				m.updateViewportHeight()
			}
			return m, nil
		}
		if m.showMap {
			switch msg.String() {
			case "+", "=":
				m.mapLatSpan *= 0.8
				m.mapLonSpan *= 0.8
				if m.mapLatSpan < 0.0001 {
					m.mapLatSpan = 0.0001
				}
				if m.mapLonSpan < 0.0001 {
					m.mapLonSpan = 0.0001
				}
				return m, nil
			case "-":
				m.mapLatSpan *= 1.25
				m.mapLonSpan *= 1.25
				return m, nil
			case "left":
				m.mapCenterLon -= m.mapLonSpan * 0.1
				return m, nil
			case "right":
				m.mapCenterLon += m.mapLonSpan * 0.1
				return m, nil
			case "up":
				m.mapCenterLat += m.mapLatSpan * 0.1
				return m, nil
			case "down":
				m.mapCenterLat -= m.mapLatSpan * 0.1
				return m, nil
			case "1":
				m.mapShowAgents = !m.mapShowAgents
				return m, nil
			case "2":
				m.mapShowTargets = !m.mapShowTargets
				return m, nil
			case "3":
				m.mapShowZones = !m.mapShowZones
				return m, nil
			}
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			m.header = m.renderHeader()
			m.headerHeight = lipgloss.Height(m.header)
			m.updateViewportHeight()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
				m.targetVP.GotoBottom()
				m.eventVP.GotoBottom()
			}
			return m, nil
		case "i":
			m.cellInput = textinput.New()
			m.cellInput.Placeholder = "lat,lon,cape,humidity"
			val := fallbackCellInput
			if m.haveAgent {
				val = fmt.Sprintf("%.5f,%.5f,3000,0.9", m.lastAgent.Lat, m.lastAgent.Lon)
			}
			m.cellInput.SetValue(val)
			m.cellInput.CursorEnd()
			m.cellInput.Focus()
			m.cellDialog = true
			m.updateViewportHeight()
			return m, nil
		case "p":
			m.showSquads = !m.showSquads
			width := m.vp.Width
			if m.showSquads {
				m.table.SetWidth(width / 2)
			} else {
				m.table.SetWidth(width)
			}
			m.header = m.renderHeader()
			m.headerHeight = lipgloss.Height(m.header)
			m.updateViewportHeight()
			return m, nil
		case "m":
			m.showMap = !m.showMap
			if m.showMap && !m.mapInitialized {
				m.initMapViewport()
			}
			m.updateViewportHeight()
			return m, nil
		case "t":
			m.summary = !m.summary
			m.updateViewportHeight()
			return m, nil
		case "h", "?":
			m.help = !m.help
			m.updateViewportHeight()
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
				m.targetVP.LineDown(1)
				m.eventVP.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
				m.targetVP.LineUp(1)
				m.eventVP.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
				m.targetVP.LineDown(10)
				m.eventVP.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
				m.targetVP.LineUp(10)
				m.eventVP.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				m.targetVP, _ = m.targetVP.Update(msg)
				m.eventVP, _ = m.eventVP.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		return m, nil
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > 1000 {
			m.logs = m.logs[len(m.logs)-1000:]
		}
		m.refreshViewport()
	case targetMsg:
		m.targetLogs = append(m.targetLogs, msg.line)
		if len(m.targetLogs) > 1000 {
			m.targetLogs = m.targetLogs[len(m.targetLogs)-1000:]
		}
		if msg.row.Focus {
			m.focusCounts++
			m.focusCells[msg.row.CellKey] = atmosphere.Position{Lat: msg.row.Lat, Lon: msg.row.Lon}
		} else {
			delete(m.focusCells, msg.row.CellKey)
		}
		m.updateViewportHeight()
		m.refreshTargets()
		m.refreshViewport()
	case eventMsg:
		m.eventLogs = append(m.eventLogs, msg.line)
		if len(m.eventLogs) > 1000 {
			m.eventLogs = m.eventLogs[len(m.eventLogs)-1000:]
		}
		m.updateViewportHeight()
		m.refreshEvents()
		m.refreshViewport()
	case agentMsg:
		m.lastAgent = atmosphere.Position{Lat: msg.Lat, Lon: msg.Lon, Alt: msg.Alt}
		m.haveAgent = true
		m.agentWear[msg.AgentID] = msg.Wear
		m.agentPositions[msg.AgentID] = atmosphere.Position{Lat: msg.Lat, Lon: msg.Lon, Alt: msg.Alt}
		m.agentSquads[msg.AgentID] = msg.Squad
		if m.squadCounts[msg.Squad] == nil {
			m.squadCounts[msg.Squad] = make(map[string]struct{})
		}
		m.squadCounts[msg.Squad][msg.AgentID] = struct{}{}
	case cycleMsg:
		m.cycle = msg.CycleRow
	case adminMsg:
		m.admin = msg.active
	case setInjectMsg:
		m.inject = msg.fn
	}
	return m, nil
}

func (m *tuiModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())

	maxLines := m.maxSectionLines()

	targetLines := len(m.targetLogs)
	if targetLines == 0 {
		targetLines = 1
	}
	if targetLines > maxLines {
		targetLines = maxLines
	}
	m.targetVP.Height = targetLines

	eventLines := len(m.eventLogs)
	if eventLines == 0 {
		eventLines = 1
	}
	if eventLines > maxLines {
		eventLines = maxLines
	}
	m.eventVP.Height = eventLines

	targetHeight := 1 + m.targetVP.Height
	eventHeight := 1 + m.eventVP.Height
	dialogHeight := 0
	if m.cellDialog {
		dialogHeight = 1
	}
	h := m.height - m.headerHeight - bottomHeight - targetHeight - eventHeight - dialogHeight - 5
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.targetVP.GotoBottom()
		m.eventVP.GotoBottom()
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshTargets() {
	content := "none"
	if len(m.targetLogs) > 0 {
		content = strings.Join(m.targetLogs, "\n")
	}
	m.targetVP.SetContent(content)
	if m.autoscroll {
		m.targetVP.GotoBottom()
	}
}

func (m *tuiModel) refreshEvents() {
	content := "none"
	if len(m.eventLogs) > 0 {
		content = strings.Join(m.eventLogs, "\n")
	}
	m.eventVP.SetContent(content)
	if m.autoscroll {
		m.eventVP.GotoBottom()
	}
}

func (m tuiModel) maxSectionLines() int {
	h := int(float64(m.height) * maxSectionHeightPct)
	if h < 1 {
		h = 1
	}
	return h
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	bottom := m.renderBottom()
	divider := strings.Repeat("─", m.vp.Width)
	if m.showMap {
		sections := []string{
			m.header,
			divider,
			m.renderMap(),
			divider,
			bottom,
		}
		return strings.Join(sections, "\n")
	}
	sections := []string{
		m.header,
		divider,
		m.vp.View(),
		divider,
		"Targets:",
		m.targetVP.View(),
		divider,
		"Events:",
		m.eventVP.View(),
	}
	if m.cellDialog {
		sections = append(sections, divider,
			fmt.Sprintf("Inject Cell (lat,lon,cape,humidity) - Enter to inject, Esc to cancel: %s", m.cellInput.View()))
	}
	sections = append(sections, divider, bottom)
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	tableView := m.table.View()
	if !m.showSquads {
		return tableView
	}
	squadsWidth := m.vp.Width/2 - 1
	squads := renderSquadTree(m.cfg, m.squadColors, m.wrap, squadsWidth)
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("│")
	return lipgloss.JoinHorizontal(lipgloss.Top, tableView, sep, squads)
}

func renderSquadTree(cfg *config.SimulationConfig, colors map[string]string, wrap bool, width int) string {
	var b strings.Builder
	b.WriteString("Squads\n")
	for i, sq := range cfg.Squads {
		prefix := "├─"
		if i == len(cfg.Squads)-1 {
			prefix = "└─"
		}
		c := colors[sq.Name]
		line := fmt.Sprintf("%s %s%s%s zone=%s scanners=%d relays=%d operators=%d fallbacks=%d",
			prefix, c, sq.Name, colorReset, sq.HomeZone, sq.Scanners, sq.Relays, sq.Operators, sq.Fallbacks)
		if wrap && width > 0 {
			line = wordwrap.String(line, width)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m tuiModel) renderSummary() string {
	total := len(m.agentWear)
	var sum float64
	for _, w := range m.agentWear {
		sum += w
	}
	avg := 0.0
	if total > 0 {
		avg = sum / float64(total)
	}
	var squadParts []string
	for _, sq := range m.cfg.Squads {
		totalSquad := m.squadTotals[sq.Name]
		active := len(m.squadCounts[sq.Name])
		pct := 0.0
		if totalSquad > 0 {
			pct = float64(active) / float64(totalSquad) * 100
		}
		c := m.squadColors[sq.Name]
		squadParts = append(squadParts, fmt.Sprintf("%s%s%s=%d/%d(%.0f%%)", c, sq.Name, colorReset, active, totalSquad, pct))
	}
	squads := strings.Join(squadParts, " ")
	summary := fmt.Sprintf("%sSUMMARY%s %sagents=%d%s %savg_wear=%.1f%s %sfocus_cells=%d%s %stargets=%d%s",
		colorBlue, colorReset,
		colorGreen, total, colorReset,
		colorCyan, avg, colorReset,
		colorRed, len(m.focusCells), colorReset,
		colorMagenta, m.cycle.TargetCount, colorReset)
	if squads != "" {
		summary = fmt.Sprintf("%s %s", summary, squads)
	}
	return summary
}

func (m tuiModel) renderBottom() string {
	adminColor := lipgloss.Color("9")
	if m.admin {
		adminColor = lipgloss.Color("10")
	}
	wrapColor := lipgloss.Color("9")
	if m.wrap {
		wrapColor = lipgloss.Color("10")
	}
	scrollColor := lipgloss.Color("10")
	if !m.autoscroll {
		scrollColor = lipgloss.Color("9")
	}
	adminIndicator := lipgloss.NewStyle().Foreground(adminColor).Render("●")
	wrapIndicator := lipgloss.NewStyle().Foreground(wrapColor).Render("●")
	scrollIndicator := lipgloss.NewStyle().Foreground(scrollColor).Render("●")
	summaryColor := lipgloss.Color("9")
	if m.summary {
		summaryColor = lipgloss.Color("10")
	}
	summaryIndicator := lipgloss.NewStyle().Foreground(summaryColor).Render("●")
	helpColor := lipgloss.Color("9")
	if m.help {
		helpColor = lipgloss.Color("10")
	}
	helpIndicator := lipgloss.NewStyle().Foreground(helpColor).Render("●")
	squadsColor := lipgloss.Color("10")
	if !m.showSquads {
		squadsColor = lipgloss.Color("9")
	}
	squadsIndicator := lipgloss.NewStyle().Foreground(squadsColor).Render("●")
	state := fmt.Sprintf("%sCYCLE%s %sn=%d%s %sphase=%s%s %scells=%d%s %sassigned=%d%s %savg_cape=%.0f%s %schaos=%t%s",
		colorBlue, colorReset,
		colorYellow, m.cycle.Cycle, colorReset,
		colorGreen, m.cycle.Phase, colorReset,
		colorMagenta, m.cycle.CellCount, colorReset,
		colorCyan, m.cycle.AssignmentCount, colorReset,
		colorWhite(), m.cycle.AvgCAPE, colorReset,
		colorRed, m.cycle.ChaosMode, colorReset)
	line := fmt.Sprintf("%s | Admin UI %s | Wrap %s | Scroll %s | Summary %s | Help %s | Squads %s",
		state, adminIndicator, wrapIndicator, scrollIndicator, summaryIndicator, helpIndicator, squadsIndicator)
	if m.summary {
		return fmt.Sprintf("%s\n%s", m.renderSummary(), line)
	}
	return line
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap for squad list",
		" s  toggle auto-scroll",
		" i  inject cell reading (lat,lon,cape,humidity)",
		" t  toggle summary footer",
		" m  toggle map view",
		" +  zoom in map",
		" -  zoom out map",
		" ←→↑↓ pan map",
		" 1  toggle agent layer",
		" 2  toggle target layer",
		" 3  toggle zone layer",
		" p  toggle squad tree",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}

func wearBG(w float64) string {
	switch {
	case w >= 75:
		return bgRed
	case w >= 25:
		return bgYellow
	default:
		return bgGreen
	}
}

func (m *tuiModel) initMapViewport() {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for _, p := range m.agentPositions {
		if p.Lat < minLat {
			minLat = p.Lat
		}
		if p.Lat > maxLat {
			maxLat = p.Lat
		}
		if p.Lon < minLon {
			minLon = p.Lon
		}
		if p.Lon > maxLon {
			maxLon = p.Lon
		}
	}
	for _, z := range m.cfg.Zones {
		kmPerLat := 111.0
		kmPerLon := 111.0 * math.Cos(z.CenterLat*math.Pi/180)
		latDelta := z.RadiusKM / kmPerLat
		lonDelta := z.RadiusKM / kmPerLon
		if z.CenterLat-latDelta < minLat {
			minLat = z.CenterLat - latDelta
		}
		if z.CenterLat+latDelta > maxLat {
			maxLat = z.CenterLat + latDelta
		}
		if z.CenterLon-lonDelta < minLon {
			minLon = z.CenterLon - lonDelta
		}
		if z.CenterLon+lonDelta > maxLon {
			maxLon = z.CenterLon + lonDelta
		}
	}
	if minLat == math.Inf(1) {
		minLat, maxLat = 0, 1
		minLon, maxLon = 0, 1
	}
	m.mapCenterLat = (maxLat + minLat) / 2
	m.mapCenterLon = (maxLon + minLon) / 2
	m.mapLatSpan = maxLat - minLat
	m.mapLonSpan = maxLon - minLon
	if m.mapLatSpan == 0 {
		m.mapLatSpan = 0.02
	}
	if m.mapLonSpan == 0 {
		m.mapLonSpan = 0.02
	}
	m.mapInitialized = true
}

func (m tuiModel) renderMap() string {
	width := m.vp.Width
	bottomHeight := lipgloss.Height(m.renderBottom())
	mapHeight := m.height - m.headerHeight - bottomHeight - 4
	if mapHeight < 1 {
		mapHeight = 1
	}
	if len(m.agentPositions) == 0 && len(m.focusCells) == 0 && len(m.cfg.Zones) == 0 {
		return "No position data"
	}
	minLat := m.mapCenterLat - m.mapLatSpan/2
	maxLat := m.mapCenterLat + m.mapLatSpan/2
	minLon := m.mapCenterLon - m.mapLonSpan/2
	maxLon := m.mapCenterLon + m.mapLonSpan/2
	lonRange := maxLon - minLon
	grid := make([][]string, mapHeight)
	for i := range grid {
		row := make([]string, width)
		for j := range row {
			row[j] = "."
		}
		grid[i] = row
	}
	// overlay simple lat/lon gridlines
	const divisions = 4
	for i := 1; i < divisions; i++ {
		x := int(float64(width-1) * float64(i) / divisions)
		for y := 0; y < mapHeight; y++ {
			if grid[y][x] == "-" {
				grid[y][x] = "+"
			} else if grid[y][x] == "." {
				grid[y][x] = "|"
			}
		}
		y := int(float64(mapHeight-1) * float64(i) / divisions)
		for x2 := 0; x2 < width; x2++ {
			if grid[y][x2] == "|" {
				grid[y][x2] = "+"
			} else if grid[y][x2] == "." {
				grid[y][x2] = "-"
			}
		}
	}
	if m.mapShowZones {
		for _, z := range m.cfg.Zones {
			x0 := int((z.CenterLon - minLon) / (maxLon - minLon) * float64(width-1))
			y0 := int((maxLat - z.CenterLat) / (maxLat - minLat) * float64(mapHeight-1))
			kmPerLat := 111.0
			kmPerLon := 111.0 * math.Cos(z.CenterLat*math.Pi/180)
			rLat := z.RadiusKM / kmPerLat
			rLon := z.RadiusKM / kmPerLon
			rx := rLon / (maxLon - minLon) * float64(width-1)
			ry := rLat / (maxLat - minLat) * float64(mapHeight-1)
			for deg := 0; deg < 360; deg += 10 {
				rad := float64(deg) * math.Pi / 180
				x := int(float64(x0) + math.Cos(rad)*rx)
				y := int(float64(y0) + math.Sin(rad)*ry)
				if y >= 0 && y < mapHeight && x >= 0 && x < width {
					grid[y][x] = fmt.Sprintf("%s%s%s", colorGray, "o", colorReset)
				}
			}
		}
	}
	if m.mapShowTargets {
		for _, p := range m.focusCells {
			x := int((p.Lon - minLon) / (maxLon - minLon) * float64(width-1))
			y := int((maxLat - p.Lat) / (maxLat - minLat) * float64(mapHeight-1))
			if y >= 0 && y < mapHeight && x >= 0 && x < width {
				grid[y][x] = fmt.Sprintf("%s%s%s", colorRed, "X", colorReset)
			}
		}
	}
	if m.mapShowAgents {
		for id, p := range m.agentPositions {
			x := int((p.Lon - minLon) / (maxLon - minLon) * float64(width-1))
			y := int((maxLat - p.Lat) / (maxLat - minLat) * float64(mapHeight-1))
			if y < 0 || y >= mapHeight || x < 0 || x >= width {
				continue
			}
			squadColor := colorWhite()
			if c, ok := m.squadColors[m.agentSquads[id]]; ok {
				squadColor = c
			}
			bg := wearBG(m.agentWear[id])
			grid[y][x] = fmt.Sprintf("%s%s%s%s", bg, squadColor, "^", colorReset)
		}
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("lat %.5f..%.5f lon %.5f..%.5f N↑\n", maxLat, minLat, minLon, maxLon))
	for _, row := range grid {
		b.WriteString(strings.Join(row, ""))
		b.WriteByte('\n')
	}
	// simple horizontal scale bar based on longitude range
	midLat := (maxLat + minLat) / 2
	kmPerLon := 111.0 * math.Cos(midLat*math.Pi/180)
	kmPerChar := lonRange * kmPerLon / float64(width)
	barChars := int(math.Min(10, float64(width)/3))
	scaleKM := kmPerChar * float64(barChars)
	b.WriteString(fmt.Sprintf("Scale: |%s| %.0fkm\n", strings.Repeat("-", barChars), scaleKM))
	var legendParts []string
	for _, sq := range m.cfg.Squads {
		if c, ok := m.squadColors[sq.Name]; ok {
			legendParts = append(legendParts, fmt.Sprintf("%s^%s=%s", c, colorReset, sq.Name))
		}
	}
	legendParts = append(legendParts, fmt.Sprintf("%sX%s=focus_cell", colorRed, colorReset))
	legendParts = append(legendParts, fmt.Sprintf("%s█%s=low_wear %s█%s=med %s█%s=high", bgGreen, colorReset, bgYellow, colorReset, bgRed, colorReset))
	legendParts = append(legendParts, "o=zone")
	b.WriteString(strings.Join(legendParts, " "))
	return strings.TrimRight(b.String(), "\n")
}

func parseCellInput(val string) (atmosphere.Cell, error) {
	parts := strings.Split(val, ",")
	if len(parts) < 4 {
		return atmosphere.Cell{}, fmt.Errorf("expected lat,lon,cape,humidity")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return atmosphere.Cell{}, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return atmosphere.Cell{}, err
	}
	cape, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return atmosphere.Cell{}, err
	}
	rh, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return atmosphere.Cell{}, err
	}
	return atmosphere.Cell{
		Lat:       lat,
		Lon:       lon,
		CAPE:      cape,
		Humidity:  rh,
		Anomaly:   0.8,
		Timestamp: time.Now().UTC(),
	}, nil
}
