// ABOUTME: Scripted MDT backend: simulate, stream, report and latest-report endpoints on a chi router.
// ABOUTME: Knobs drop stream connections, chunk reports and hide report endpoints to exercise client fallbacks.
package mock

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPatientID is used when an uploaded case has no patient_id.
const DefaultPatientID = "P-001"

// maxUpload bounds the multipart body.
const maxUpload = 10 << 20

// Options shape every run the server creates.
type Options struct {
	// Chunks > 0 sends the report as report_metadata plus that many report_chunk events.
	Chunks int
	// DropAfter > 0 closes the first stream connection of each run after that many events.
	DropAfter int
	// NoStreamReport omits the report from the stream so clients must fetch it.
	NoStreamReport bool
	// PrimaryMissing makes /api/report/ answer 404.
	PrimaryMissing bool
	// LatestMissing makes /api/latest-report/ answer 404.
	LatestMissing bool
	// EventDelay is the pause between stream events.
	EventDelay time.Duration
}

type run struct {
	id        string
	patientID string
	doc       []byte
	frames    []frame
	streams   int
}

// Server is the mock backend.
type Server struct {
	opts   Options
	router chi.Router

	mu   sync.Mutex
	runs map[string]*run

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	events   prometheus.Counter
	active   prometheus.Gauge
}

// NewServer builds a mock backend with opts.
func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		runs:     make(map[string]*run),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdt_mock",
			Name:      "requests_total",
			Help:      "Requests served by route and status code.",
		}, []string{"route", "code"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mdt_mock",
			Name:      "stream_events_total",
			Help:      "SSE events written to clients.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mdt_mock",
			Name:      "active_streams",
			Help:      "Open stream connections.",
		}),
	}
	s.registry.MustRegister(s.requests, s.events, s.active)
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Registry exposes the server's metrics registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// AddRun registers a run directly, bypassing upload. Used to attach to a known id.
func (s *Server) AddRun(runID, patientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = s.newRunLocked(runID, patientID)
}

func (s *Server) newRunLocked(runID, patientID string) *run {
	doc, err := json.Marshal(BuildReport(patientID))
	if err != nil {
		panic(fmt.Sprintf("mock: marshal report: %v", err))
	}
	return &run{
		id:        runID,
		patientID: patientID,
		doc:       doc,
		frames:    buildScript(runID, doc, s.opts),
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/simulate", s.handleSimulate)
		r.Get("/stream/{runID}", s.handleStream)
		r.Get("/report/{runID}", s.handleReport(false))
		r.Get("/latest-report/{runID}", s.handleReport(true))
	})
	return r
}

func (s *Server) count(route string, code int) {
	s.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		s.count("simulate", http.StatusBadRequest)
		writeDetail(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		s.count("simulate", http.StatusBadRequest)
		writeDetail(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.count("simulate", http.StatusBadRequest)
		writeDetail(w, http.StatusBadRequest, "could not read upload")
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		s.count("simulate", http.StatusUnprocessableEntity)
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid JSON file")
		return
	}
	patientID := DefaultPatientID
	if p, ok := payload["patient_id"].(string); ok && p != "" {
		patientID = p
	}

	runID := uuid.NewString()
	s.AddRun(runID, patientID)
	log.Printf("mock event=simulate run_id=%s patient_id=%s", runID, patientID)

	s.count("simulate", http.StatusAccepted)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"run_id":  runID,
		"message": "Simulation started",
	})
}

func (s *Server) lookup(runID string) (*run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rn, ok := s.runs[runID]
	return rn, ok
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	s.mu.Lock()
	rn, ok := s.runs[runID]
	var connection int
	var frames []frame
	if ok {
		rn.streams++
		connection = rn.streams
		frames = rn.frames
	}
	s.mu.Unlock()

	if !ok {
		s.count("stream", http.StatusNotFound)
		writeDetail(w, http.StatusNotFound, "Run not found")
		return
	}

	after := 0
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			after = n
		}
	}

	s.count("stream", http.StatusOK)
	s.active.Inc()
	defer s.active.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	sent := 0
	for _, f := range frames {
		if f.ID <= after {
			continue
		}
		if connection == 1 && s.opts.DropAfter > 0 && sent >= s.opts.DropAfter {
			log.Printf("mock event=drop run_id=%s after=%d", runID, sent)
			return
		}
		if s.opts.EventDelay > 0 {
			select {
			case <-time.After(s.opts.EventDelay):
			case <-r.Context().Done():
				return
			}
		}
		if _, err := io.WriteString(w, f.Format()); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
		sent++
		s.events.Inc()
	}
	log.Printf("mock event=stream_done run_id=%s connection=%d resumed_after=%d sent=%d", runID, connection, after, sent)
}

func (s *Server) handleReport(latest bool) http.HandlerFunc {
	route, missing := "report", s.opts.PrimaryMissing
	if latest {
		route, missing = "latest_report", s.opts.LatestMissing
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rn, ok := s.lookup(chi.URLParam(r, "runID"))
		if !ok || missing {
			s.count(route, http.StatusNotFound)
			writeDetail(w, http.StatusNotFound, "Report not found")
			return
		}
		s.count(route, http.StatusOK)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rn.doc)
	}
}
