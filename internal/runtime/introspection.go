package runtime

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/axonbridge/internal/runtime/handlers"
)

// Details is the body of GET /_server/details.
type Details struct {
	ServerName    string `json:"serverName"`
	ServerVersion string `json:"serverVersion"`
}

// Banner is the text served at GET /_server/.
func (s *Server) Banner() string {
	return "Axon HTTP Bridge v" + s.opts.Version + ` / "` + s.opts.Name + `"`
}

func (s *Server) mountIntrospection(r chi.Router) {
	r.Method(http.MethodGet, "/", handlers.Handle(s.handleBanner))
	r.Method(http.MethodGet, "/details", handlers.Handle(s.handleDetails))
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Metrics, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := w.Write([]byte(s.Banner()))
	return err
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) error {
	return handlers.WriteJSON(w, http.StatusOK, Details{
		ServerName:    s.opts.Name,
		ServerVersion: s.opts.Version,
	})
}
