package sim

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"aethersim/internal/atmosphere"
	"aethersim/internal/config"
	"aethersim/internal/feedback"
	"aethersim/internal/telemetry"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p, squadColors: map[string]string{}}

	row := telemetry.AgentRow{ClusterID: "c", AgentID: "a1", Squad: "storm-watch", Timestamp: time.Unix(0, 0).UTC()}
	if err := w.Write(row); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := p.msgs[0].(logMsg); !ok {
		t.Fatalf("expected logMsg, got %T", p.msgs[0])
	}
	if _, ok := p.msgs[1].(agentMsg); !ok {
		t.Fatalf("expected agentMsg, got %T", p.msgs[1])
	}

	if err := w.WriteTarget(telemetry.TargetRow{CellKey: "k1", Score: 0.8, Focus: true, Timestamp: time.Unix(0, 0).UTC()}); err != nil {
		t.Fatalf("target: %v", err)
	}
	tm, ok := p.msgs[2].(targetMsg)
	if !ok {
		t.Fatalf("expected targetMsg, got %T", p.msgs[2])
	}
	if !strings.Contains(tm.line, "FOCUS") {
		t.Fatalf("focused target line missing FOCUS tag: %q", tm.line)
	}

	if err := w.WriteEvent(telemetry.EventRow{EventType: telemetry.EventRotation, AgentIDs: []string{"a1"}, Timestamp: time.Unix(0, 0).UTC()}); err != nil {
		t.Fatalf("event: %v", err)
	}
	if _, ok := p.msgs[3].(eventMsg); !ok {
		t.Fatalf("expected eventMsg, got %T", p.msgs[3])
	}

	// Outcomes share the event log.
	if err := w.WriteOutcome(feedback.OutcomeRecord{AgentID: "a1", Result: feedback.ResultSuccess, Timestamp: time.Unix(0, 0).UTC()}); err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if _, ok := p.msgs[4].(eventMsg); !ok {
		t.Fatalf("expected eventMsg for outcome, got %T", p.msgs[4])
	}

	if err := w.WriteCycle(telemetry.CycleRow{Cycle: 2}); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if cm, ok := p.msgs[5].(cycleMsg); !ok || cm.Cycle != 2 {
		t.Fatalf("expected cycleMsg{2}, got %T %v", p.msgs[5], p.msgs[5])
	}

	w.SetAdminStatus(true)
	if am, ok := p.msgs[6].(adminMsg); !ok || !am.active {
		t.Fatalf("expected active adminMsg, got %T", p.msgs[6])
	}

	w.SetInjector(func(atmosphere.Cell) {})
	if _, ok := p.msgs[7].(setInjectMsg); !ok {
		t.Fatalf("expected setInjectMsg, got %T", p.msgs[7])
	}
}

func tuiTestConfig() *config.SimulationConfig {
	return &config.SimulationConfig{
		Zones:  []atmosphere.Region{{Name: "z1", CenterLat: 47.5, CenterLon: 13.0, RadiusKM: 30}},
		Squads: []config.Squad{{Name: "storm-watch", HomeZone: "z1", Scanners: 2, Fallbacks: 1}},
	}
}

func TestModelWrapToggle(t *testing.T) {
	m := newTUIModel(tuiTestConfig(), map[string]string{"storm-watch": colorBlue})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 40})
	m = mi.(tuiModel)

	if m.wrap {
		t.Fatalf("wrap should start disabled")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
}

func TestModelCellInjectDialog(t *testing.T) {
	m := newTUIModel(tuiTestConfig(), map[string]string{})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m = mi.(tuiModel)

	var injected atmosphere.Cell
	done := make(chan struct{})
	mi, _ = m.Update(setInjectMsg{fn: func(c atmosphere.Cell) {
		injected = c
		close(done)
	}})
	m = mi.(tuiModel)

	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'i'}})
	m = mi.(tuiModel)
	if !m.cellDialog {
		t.Fatalf("inject key did not open the dialog")
	}
	m.cellInput.SetValue("47.9,13.2,3500,0.85")
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mi.(tuiModel)
	if m.cellDialog {
		t.Fatalf("dialog should close on enter")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("injector never called")
	}
	if injected.Lat != 47.9 || injected.CAPE != 3500 || injected.Humidity != 0.85 {
		t.Fatalf("injected cell = %+v", injected)
	}
	if injected.Anomaly != 0.8 {
		t.Fatalf("injected anomaly = %.2f, want dialog default 0.8", injected.Anomaly)
	}
}

func TestParseCellInputErrors(t *testing.T) {
	if _, err := parseCellInput("47.5,13.0"); err == nil {
		t.Fatalf("short input accepted")
	}
	if _, err := parseCellInput("a,b,c,d"); err == nil {
		t.Fatalf("non-numeric input accepted")
	}
	c, err := parseCellInput(fallbackCellInput)
	if err != nil {
		t.Fatalf("fallback input rejected: %v", err)
	}
	if c.Lat != 47.5 || c.CAPE != 3000 {
		t.Fatalf("fallback cell = %+v", c)
	}
}

func TestModelMapToggle(t *testing.T) {
	m := newTUIModel(tuiTestConfig(), map[string]string{})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 30})
	m = mi.(tuiModel)
	mi, _ = m.Update(agentMsg{telemetry.AgentRow{AgentID: "a1", Squad: "storm-watch", Lat: 47.5, Lon: 13.0}})
	m = mi.(tuiModel)

	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	m = mi.(tuiModel)
	if !m.showMap || !m.mapInitialized {
		t.Fatalf("map not shown after toggle")
	}
	view := m.View()
	if !strings.Contains(view, "Scale:") || !strings.Contains(view, "focus_cell") {
		t.Fatalf("map view missing scale or legend")
	}

	// Zoom narrows the span.
	before := m.mapLatSpan
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	m = mi.(tuiModel)
	if m.mapLatSpan >= before {
		t.Fatalf("zoom in did not narrow span: %.4f -> %.4f", before, m.mapLatSpan)
	}
}

func TestModelSummaryFooter(t *testing.T) {
	m := newTUIModel(tuiTestConfig(), map[string]string{"storm-watch": colorGreen})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m = mi.(tuiModel)
	mi, _ = m.Update(agentMsg{telemetry.AgentRow{AgentID: "a1", Squad: "storm-watch", Wear: 10}})
	m = mi.(tuiModel)
	mi, _ = m.Update(cycleMsg{telemetry.CycleRow{Cycle: 5, TargetCount: 3}})
	m = mi.(tuiModel)

	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	m = mi.(tuiModel)
	bottom := m.renderBottom()
	if !strings.Contains(bottom, "SUMMARY") || !strings.Contains(bottom, "agents=1") {
		t.Fatalf("summary footer = %q", bottom)
	}
}
