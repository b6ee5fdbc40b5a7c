package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/paulgrammer/luminous/internal/jobs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// ResultResolver maps a job result reference to a file on disk.
type ResultResolver interface {
	Resolve(ref string) (path string, found bool)
}

type router struct {
	manager   *jobs.Manager
	streamer  *jobs.EventStreamer
	results   ResultResolver
	staticDir string
}

func NewRouter(manager *jobs.Manager, streamer *jobs.EventStreamer, results ResultResolver, staticDir string) http.Handler {
	r := &router{manager: manager, streamer: streamer, results: results, staticDir: staticDir}
	m := chi.NewRouter()
	m.Use(middleware.RequestID, middleware.Recoverer, logging)

	m.Get("/", r.handleIndex)
	m.Get("/healthz", r.handleHealth)
	m.Post("/generate", r.handleGenerate)
	m.Get("/preview/{jobId}", r.handlePreview)
	m.Get("/download/{jobId}", r.handleDownload)
	m.Get("/ws/{jobId}", r.handleJobEvents)
	m.Handle("/metrics", promhttp.Handler())
	m.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	return m
}

func (r *router) handleGenerate(w http.ResponseWriter, req *http.Request) {
	body := jobs.NewWallpaperRequest()
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid json")
		return
	}

	id, err := r.manager.Generate(req.Context(), body)
	if err != nil {
		respondWithJobError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, JobResponse{
		JobID:   id,
		Status:  "success",
		Message: "Wallpaper generation started",
	})
}

func (r *router) handlePreview(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "jobId")
	job, err := r.manager.Get(id)
	if err != nil {
		respondWithJobError(w, err)
		return
	}

	switch job.Status {
	case jobs.JobStatusCompleted:
		respondWithJSON(w, http.StatusOK, JobResponse{
			JobID:      id,
			Status:     "success",
			PreviewURL: job.Result,
			Message:    "Preview available",
		})
	case jobs.JobStatusFailed:
		respondWithJSON(w, http.StatusOK, JobResponse{
			JobID:   id,
			Status:  string(job.Status),
			Message: job.Message,
		})
	default:
		respondWithJSON(w, http.StatusOK, JobResponse{
			JobID:   id,
			Status:  string(job.Status),
			Message: "Wallpaper still processing",
		})
	}
}

func (r *router) handleDownload(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "jobId")
	ref, err := r.manager.Result(id)
	if err != nil {
		respondWithJobError(w, err)
		return
	}

	path, found := r.results.Resolve(ref)
	if !found {
		slog.Warn("result missing, serving placeholder", "job_id", id, "result", ref)
	}
	f, err := os.Open(path)
	if err != nil {
		slog.Error("failed to open wallpaper", "job_id", id, "path", path, "error", err)
		respondWithError(w, http.StatusNotFound, "Wallpaper file not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "luminous-wallpaper-"+id+".png"))
	http.ServeContent(w, req, filepath.Base(path), info.ModTime(), f)
}

// handleJobEvents streams job snapshots over a websocket until the job is
// terminal or the client goes away.
func (r *router) handleJobEvents(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "jobId")
	if _, err := r.manager.Get(id); err != nil {
		respondWithJobError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}

	sub := r.streamer.Subscribe(id, conn)
	defer r.streamer.Unsubscribe(id, sub)
	defer sub.Close()

	// Snapshot after subscribing so a transition cannot fall between the two.
	job, err := r.manager.Get(id)
	if err != nil || sub.WriteJSON(job) != nil || job.Status.Terminal() {
		return
	}

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (r *router) handleIndex(w http.ResponseWriter, req *http.Request) {
	index := filepath.Join(r.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, req)
		return
	}
	http.ServeFile(w, req, index)
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start).String(),
		)
	})
}
