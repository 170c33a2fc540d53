package httpapi

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router wraps http.ServeMux.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

const entitiesPrefix = "/api/v1/entities/"

// RegisterEntityRoutes mounts list and one under /api/v1/entities/.
func (r *Router) RegisterEntityRoutes(h *EntityHandler) {
	r.Handle(entitiesPrefix, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rest := strings.Trim(strings.TrimPrefix(req.URL.Path, entitiesPrefix), "/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			h.List(w, req, parts[0])
		case len(parts) == 2 && parts[1] == "one":
			h.One(w, req, parts[0])
		default:
			writeJSON(w, http.StatusNotFound, Fail("not found"))
		}
	})
}

func (r *Router) RegisterAbilityRoutes(h *AbilityHandler) {
	r.Handle("/api/v1/abilities", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Rules(w, req)
	})
	r.Handle("/api/v1/abilities/check", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Check(w, req)
	})
}

func (r *Router) RegisterMetricsRoute() {
	r.HandleHandler("/metrics", promhttp.Handler())
}

func (r *Router) RegisterHealthRoute() {
	r.Handle("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
}
