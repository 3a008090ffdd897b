// Package ui serves stored classification runs: HTML pages on a chi router
// and a JSON API on a gin engine mounted under /api.
package ui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"llmusic/app/classify"
	"llmusic/domain/core"
	"llmusic/internal"
	"llmusic/internal/render"
	"llmusic/ports"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// App is the results browser.
type App struct {
	router    *chi.Mux
	api       *gin.Engine
	repo      ports.ResultRepository
	templates *template.Template
	logger    *internal.Logger
}

// NewApp wires the routes over repo.
func NewApp(repo ports.ResultRepository, logger *internal.Logger) (*App, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	funcMap := template.FuncMap{
		"date": func(t time.Time) string { return t.Format("02/01/2006 15:04") },
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	a := &App{
		router:    chi.NewRouter(),
		api:       newAPI(repo, logger),
		repo:      repo,
		templates: templates,
		logger:    logger,
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a, nil
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes() {
	a.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	a.router.Get("/", a.handleIndex)
	a.router.Get("/runs/{id}", a.handleRunSummary)

	// gin routes on the full path, so the prefix is kept.
	a.router.Handle("/api/*", a.api)
}

// Handler exposes the router, mostly for tests.
func (a *App) Handler() http.Handler {
	return a.router
}

// Start serves on addr until ctx is cancelled.
func (a *App) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: a.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting llmusic UI server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("Shutting down UI server")
		return srv.Shutdown(shutdownCtx)
	}
}

type indexPage struct {
	Runs []*ports.RunInfo
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := a.repo.ListRuns(r.Context())
	if err != nil {
		a.logger.Error("failed to list runs: %v", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	a.renderTemplate(w, "runs.html", indexPage{Runs: runs})
}

func (a *App) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	id := core.RunID(chi.URLParam(r, "id"))
	run, err := a.repo.GetRun(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	records, err := classify.LoadCompleted(r.Context(), a.repo, id)
	if err != nil {
		a.logger.Error("failed to load results of run %s: %v", id, err)
		http.Error(w, "failed to load results", http.StatusInternalServerError)
		return
	}

	md := classify.Summarize(records).Markdown(fmt.Sprintf("Execução %s (%s)", run.ID, run.Model))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(render.MarkdownPage(md, "llmusic"))
}

func (a *App) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.templates.ExecuteTemplate(w, name, data); err != nil {
		a.logger.Error("template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}
