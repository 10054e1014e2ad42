package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the process-wide registry on /metrics. It is only ever
// constructed when metrics are enabled; callers otherwise pass a nil
// *Server around and skip starting it.
type Server struct {
	http *http.Server
}

// NewServer builds a Server bound to port, scraping GetRegistry(). Returns
// nil if InitRegistry was never called.
func NewServer(port int) *Server {
	if registry == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{http: &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}}
}

// Start runs the metrics listener until the process shuts down or Stop is
// called. It returns http.ErrServerClosed on graceful shutdown, matching
// net/http.Server.ListenAndServe's contract.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

// Stop gracefully shuts the metrics listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
