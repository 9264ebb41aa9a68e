package ui

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"trialsim/domain/core"
	"trialsim/domain/run"
	"trialsim/internal"
	"trialsim/models"
	"trialsim/ports"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// App is the read-only HTML viewer for stored run reports.
type App struct {
	router    *chi.Mux
	runs      ports.RunRepository
	templates *template.Template
	logger    *internal.Logger
}

// Config holds UI application configuration
type Config struct {
	Port  string
	Limit int
}

// NewApp creates a new UI application
func NewApp(runs ports.RunRepository, config Config) (*App, error) {
	funcMap := template.FuncMap{
		"when": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") },
		"ms":   func(ms int64) string { return (time.Duration(ms) * time.Millisecond).String() },
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if config.Limit <= 0 {
		config.Limit = 100
	}

	a := &App{
		router:    chi.NewRouter(),
		runs:      runs,
		templates: templates,
		logger:    internal.NewComponentLogger("UI"),
	}
	a.setupMiddleware()
	a.setupRoutes(config.Limit)
	return a, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes(limit int) {
	a.router.Get("/", a.handleIndex(limit))
	a.router.Get("/runs/{id}", a.handleRun)
	a.router.Get("/runs/{id}/report.md", a.handleRunMarkdown)
}

// ServeHTTP lets the App be mounted or tested as a plain handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Start starts the HTTP server
func (a *App) Start(port string) error {
	addr := ":" + port
	a.logger.Info("report viewer listening on %s", addr)
	srv := &http.Server{Addr: addr, Handler: a.router, ReadHeaderTimeout: 10 * time.Second}
	return srv.ListenAndServe()
}

type indexPage struct {
	Kind  run.Kind
	Kinds []run.Kind
	Runs  []*models.SimulationRun
}

func (a *App) handleIndex(limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := run.Kind(r.URL.Query().Get("kind"))
		if kind != "" && !kind.Valid() {
			http.Error(w, "unknown run kind", http.StatusBadRequest)
			return
		}
		runs, err := a.runs.ListRuns(r.Context(), kind, limit)
		if err != nil {
			a.logger.Error("list runs: %v", err)
			http.Error(w, "could not load runs", http.StatusInternalServerError)
			return
		}
		a.renderTemplate(w, "index.html", indexPage{Kind: kind, Kinds: run.Kinds(), Runs: runs})
	}
}

type runPage struct {
	Run    *models.SimulationRun
	Report template.HTML
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	sr, ok := a.loadRun(w, r)
	if !ok {
		return
	}
	a.renderTemplate(w, "run.html", runPage{Run: sr, Report: renderMarkdown(sr.Report)})
}

func (a *App) handleRunMarkdown(w http.ResponseWriter, r *http.Request) {
	sr, ok := a.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(sr.Report))
}

func (a *App) loadRun(w http.ResponseWriter, r *http.Request) (*models.SimulationRun, bool) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	sr, err := a.runs.GetRun(r.Context(), id)
	if errors.Is(err, core.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		a.logger.Error("load run %s: %v", id, err)
		http.Error(w, "could not load run", http.StatusInternalServerError)
		return nil, false
	}
	return sr, true
}
