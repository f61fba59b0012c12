package admin

import (
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strconv"

	"aethersim/internal/atmosphere"
	"aethersim/internal/config"
	"aethersim/internal/sim"
)

// Server exposes simulator state and controls over HTTP.
type Server struct {
	Sim *sim.Simulator
	tpl *template.Template
}

//go:embed templates/index.html
var content embed.FS

func NewServer(s *sim.Simulator) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{Sim: s, tpl: tpl}
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/telemetry", s.handleTelemetry)
	mux.HandleFunc("/targets", s.handleTargets)
	mux.HandleFunc("/assignments", s.handleAssignments)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/roster-health", s.handleHealth)
	mux.HandleFunc("/toggle-chaos", s.handleToggleChaos)
	mux.HandleFunc("/rotate-roles", s.handleRotate)
	mux.HandleFunc("/rotation-schedule", s.handleSchedule)
	mux.HandleFunc("/launch-agents", s.handleLaunch)
	mux.HandleFunc("/ingest", s.handleIngest)
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.routes(mux)
	return http.ListenAndServe(addr, mux)
}

// Handler returns the admin mux, used by tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Chaos   bool
		Phase   sim.Phase
		Squads  []sim.SquadHealth
		Config  []config.Squad
		Weights any
	}{
		Chaos:   s.Sim.Chaos(),
		Phase:   s.Sim.Phase(),
		Squads:  s.Sim.Health(),
		Config:  s.Sim.GetConfig().Squads,
		Weights: s.Sim.Weights(),
	}
	s.tpl.Execute(w, data)
}

func (s *Server) handleToggleChaos(w http.ResponseWriter, r *http.Request) {
	state := s.Sim.ToggleChaos()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"chaos": state})
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	changes := s.Sim.RotateNow()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"rotated": len(changes)})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"schedule": s.Sim.RotationQueue()})
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	squad := r.URL.Query().Get("squad")
	countStr := r.URL.Query().Get("count")
	count, _ := strconv.Atoi(countStr)
	if count <= 0 {
		count = 1
	}
	if squad == "" {
		squad = "reserve"
	}
	s.Sim.LaunchSquad(squad, count)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Sim.Health())
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Sim.TelemetrySnapshot())
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Sim.Targets())
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Sim.Assignments())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Sim.SharedSnapshot())
}

// handleIngest accepts a cell payload and queues it for the next cycle.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := atmosphere.ParsePayload(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Sim.IngestPayload(p)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"queued": len(p.Cells)})
}
