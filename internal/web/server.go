package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zheng/pyflow/internal/display"
	"github.com/zheng/pyflow/internal/export"
	"github.com/zheng/pyflow/internal/reach"
	"github.com/zheng/pyflow/internal/storage"
	"github.com/zheng/pyflow/internal/telemetry"
)

//go:embed static/*
var staticFS embed.FS

// Server is the web server for browsing stored flow graphs
type Server struct {
	db       *storage.DB
	port     int
	metrics  *telemetry.Metrics
	exporter *export.Exporter
	logger   *slog.Logger
}

// NewServer creates a new web server. metrics may be nil.
func NewServer(db *storage.DB, port int, metrics *telemetry.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics(nil)
	}
	return &Server{
		db:       db,
		port:     port,
		metrics:  metrics,
		exporter: export.NewExporter(logger),
		logger:   logger,
	}
}

// RunData is one entry of the run list
type RunData struct {
	*storage.Run
	Short string `json:"short"`
}

// Handler returns the routes of the server.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/runs/{id}/dot", s.handleFormat(export.FormatDOT, "text/vnd.graphviz; charset=utf-8"))
	mux.HandleFunc("GET /api/runs/{id}/mermaid", s.handleFormat(export.FormatMermaid, "text/plain; charset=utf-8"))
	mux.HandleFunc("GET /api/runs/{id}/trace", s.handleTrace)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Static files
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to get static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticContent)))
	return mux, nil
}

// Run starts the web server and stops it when ctx ends
func (s *Server) Run(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 Web UI 启动", slog.String("url", fmt.Sprintf("http://localhost:%d", s.port)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// handleRuns lists stored runs, newest first
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	data := make([]RunData, 0, len(runs))
	for _, run := range runs {
		data = append(data, RunData{Run: run, Short: run.ID[:min(8, len(run.ID))]})
	}
	writeJSON(w, data)
}

// handleRun returns the graph of one run
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	g, err := s.db.LoadGraph(r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, g)
}

// handleFormat re-emits a stored run as text
func (s *Server) handleFormat(format export.Format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := s.db.GetRun(r.PathValue("id"))
		if err != nil {
			s.fail(w, err)
			return
		}
		g, err := s.db.LoadGraph(run.ID)
		if err != nil {
			s.fail(w, err)
			return
		}
		opts := export.DefaultExportOptions()
		opts.Format = format
		opts.Title = run.Target
		if d := r.URL.Query().Get("direction"); d != "" {
			opts.Direction = d
		}
		var buf bytes.Buffer
		if err := s.exporter.Export(&buf, g, opts); err != nil {
			s.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(buf.Bytes())
	}
}

// handleTrace returns a reachability report for ?node=
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	node := q.Get("node")
	if node == "" {
		http.Error(w, "Missing node parameter", http.StatusBadRequest)
		return
	}
	up, down := queryInt(q.Get("up"), 0), queryInt(q.Get("down"), 0)

	report, err := reach.NewAnalyzer(s.db).Analyze(r.PathValue("id"), node, up, down)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"report": report,
		"text":   display.FormatReport(report),
	})
}

// handleStats returns database statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrRunNotFound) || errors.Is(err, reach.ErrNodeNotFound) {
		status = http.StatusNotFound
	} else {
		s.logger.Error("request failed", slog.String("error", err.Error()))
	}
	http.Error(w, err.Error(), status)
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(data)
}
