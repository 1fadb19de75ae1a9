// Package api provides HTTP handlers for the tile view server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/atlasmap-sc/tileview/internal/cache"
	"github.com/atlasmap-sc/tileview/internal/loop"
	"github.com/atlasmap-sc/tileview/internal/pyramid"
	"github.com/atlasmap-sc/tileview/internal/render"
	"github.com/atlasmap-sc/tileview/internal/tileview"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Loop        *loop.Loop
	View        *tileview.View
	Compositor  *render.Compositor
	Cache       *cache.Manager
	CORSOrigins []string
}

// NewRouter creates a new HTTP router. Every handler touching the view runs
// its work on cfg.Loop.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/frame.png", frameHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", stateHandler(cfg))
		r.Get("/levels", levelsHandler(cfg))
		r.Put("/viewport", viewportHandler(cfg))
		r.Post("/update", updateHandler(cfg))
	})

	return r
}

// onLoop runs f on the view's loop, mapping loop failures to 503.
// f is not applied when the request is canceled before it starts.
func onLoop(w http.ResponseWriter, r *http.Request, l *loop.Loop, f func()) bool {
	if err := l.Do(r.Context(), f); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.Canceled) {
			// Client went away.
			status = http.StatusRequestTimeout
		}
		http.Error(w, err.Error(), status)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type stateResponse struct {
	View  tileview.State `json:"view"`
	Cache *cache.Stats   `json:"cache,omitempty"`
}

func stateHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp stateResponse
		if !onLoop(w, r, cfg.Loop, func() { resp.View = cfg.View.State() }) {
			return
		}
		if cfg.Cache != nil {
			s := cfg.Cache.Stats()
			resp.Cache = &s
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func levelsHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var levels []tileview.LevelInfo
		if !onLoop(w, r, cfg.Loop, func() { levels = cfg.View.Levels() }) {
			return
		}
		writeJSON(w, http.StatusOK, levels)
	}
}

// viewportRequest carries a host viewport change. Omitted fields keep their
// current value.
type viewportRequest struct {
	ScrollX *int     `json:"scroll_x"`
	ScrollY *int     `json:"scroll_y"`
	Width   *int     `json:"width"`
	Height  *int     `json:"height"`
	Zoom    *float64 `json:"zoom"`
}

func viewportHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req viewportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Zoom != nil && *req.Zoom <= 0 {
			http.Error(w, "zoom must be positive", http.StatusBadRequest)
			return
		}
		if (req.ScrollX == nil) != (req.ScrollY == nil) || (req.Width == nil) != (req.Height == nil) {
			http.Error(w, "scroll_x/scroll_y and width/height must be given together", http.StatusBadRequest)
			return
		}

		var (
			state tileview.State
			err   error
		)
		ok := onLoop(w, r, cfg.Loop, func() {
			v := cfg.View
			if req.Zoom != nil {
				err = errors.Join(err, v.SetScale(*req.Zoom))
			}
			if req.Width != nil {
				err = errors.Join(err, v.SetSize(*req.Width, *req.Height))
			}
			if req.ScrollX != nil {
				v.ScrollTo(*req.ScrollX, *req.ScrollY)
			}
			state = v.State()
		})
		if !ok {
			return
		}
		if errors.Is(err, pyramid.ErrNoLevels) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func updateHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var state tileview.State
		if !onLoop(w, r, cfg.Loop, func() {
			cfg.View.Flush()
			state = cfg.View.State()
		}) {
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func frameHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Bitmaps belong to the loop, so compositing happens there too.
		var img image.Image
		if !onLoop(w, r, cfg.Loop, func() { img = cfg.Compositor.Draw(cfg.View.Frame()) }) {
			return
		}
		if img.Bounds().Empty() {
			http.Error(w, "viewport is empty", http.StatusConflict)
			return
		}

		data, err := cfg.Compositor.EncodePNG(img)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(data)
	}
}
