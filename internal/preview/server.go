// Package preview provides a web-based preview server for compiled
// components: a frame scrubber backed by on-demand rendering, with live
// reload pushed over SSE when bundles recompile.
package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/frameloom-labs/frameloom/internal/engine"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"
	"golang.org/x/sync/errgroup"
)

const sessionName = "frameloom-preview"

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Frameloom Preview</title>
<style>
body { font-family: system-ui, sans-serif; background: #0f172a; color: #e2e8f0; margin: 0; display: flex; }
nav { width: 220px; padding: 1rem; border-right: 1px solid #1e293b; min-height: 100vh; }
nav a { display: block; color: #38bdf8; padding: 0.25rem 0; text-decoration: none; }
main { flex: 1; padding: 1rem; }
#frame { background: #000; max-width: 100%%; border: 1px solid #1e293b; }
#controls { margin-top: 0.5rem; display: flex; gap: 0.75rem; align-items: center; }
#scrub { flex: 1; }
button { background: #1e293b; color: #e2e8f0; border: 0; padding: 0.4rem 1rem; cursor: pointer; }
</style>
</head>
<body>
<nav id="bundles" data-selected="%s"></nav>
<main>
  <h2 id="title">Frameloom</h2>
  <img id="frame" alt="frame">
  <div id="controls">
    <button id="play">Play</button>
    <input id="scrub" type="range" min="0" max="1" step="0.01" value="0">
    <span id="time"></span>
  </div>
</main>
<script src="/player.js"></script>
</body>
</html>
`

// Config holds configuration for the preview server.
type Config struct {
	Engine        *engine.Engine
	Port          int
	Watch         bool
	SessionSecret string
	FPS           float64
	Logger        *slog.Logger
}

// Server serves the component preview UI.
type Server struct {
	engine       *engine.Engine
	sessionStore *sessions.CookieStore
	port         int
	watch        bool
	fps          float64
	logger       *slog.Logger
	notifier     *notifier
}

// NewServer creates a preview server and hooks it into the engine's
// reload notifications.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30)
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		engine:       cfg.Engine,
		sessionStore: sessionStore,
		port:         cfg.Port,
		watch:        cfg.Watch,
		fps:          fps,
		logger:       logger,
		notifier:     newNotifier(),
	}

	s.engine.OnReload(func(string, int) {
		s.notifier.broadcast()
	})

	return s
}

// Serve starts the preview server and blocks until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting preview server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.routes(r)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.engine.Watch(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down preview server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) routes(r chi.Router) {
	r.Get("/", s.handleIndex)
	r.Get("/player.js", s.handlePlayer)
	r.Get("/updates", s.handleUpdates)
	r.Post("/view/{id}", s.handleView)
	r.Get("/api/bundles", s.handleBundles)
	r.Get("/api/bundles/{id}/frame", s.handleFrame)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	selected := ""
	if session, err := s.sessionStore.Get(r, sessionName); err == nil {
		if id, ok := session.Values["bundle"].(string); ok {
			selected = id
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, indexHTML, selected)
}

func (s *Server) handlePlayer(w http.ResponseWriter, _ *http.Request) {
	js, err := buildPlayer(true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(js))
}

// handleUpdates is the long-lived SSE endpoint. Each reload broadcast
// pushes a refresh instruction in the datastar wire format.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := s.notifier.subscribe()
	defer s.notifier.unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			if err := sse.ExecuteScript("window.dispatchEvent(new Event('frameloom:reload'))"); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, _ := s.sessionStore.Get(r, sessionName)
	session.Values["bundle"] = id
	if err := session.Save(r, w); err != nil {
		s.logger.Warn("failed to save session", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// BundleMeta is the JSON shape of one previewable bundle.
type BundleMeta struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Version  int     `json:"version"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Duration float64 `json:"duration"`
}

func (s *Server) handleBundles(w http.ResponseWriter, _ *http.Request) {
	bundles, err := s.engine.Bundles()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := struct {
		Bundles []BundleMeta `json:"bundles"`
	}{Bundles: []BundleMeta{}}

	for _, b := range bundles {
		mod, ok := s.engine.Lookup(b.ID)
		if !ok {
			continue
		}
		duration := mod.Meta.DefaultDuration
		if duration <= 0 {
			duration = 1
		}
		out.Bundles = append(out.Bundles, BundleMeta{
			ID:       b.ID,
			Name:     b.Name,
			Version:  mod.Version,
			Width:    mod.Meta.Width,
			Height:   mod.Meta.Height,
			FPS:      s.fps,
			Duration: duration,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("failed to encode bundle list", "error", err)
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, _ := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	fps, _ := strconv.ParseFloat(r.URL.Query().Get("fps"), 64)
	if fps <= 0 {
		fps = s.fps
	}

	img, err := s.engine.RenderFrame(r.Context(), id, t, fps, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		s.logger.Warn("failed to encode frame", "bundle", id, "error", err)
	}
}
