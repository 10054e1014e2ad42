package wsserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/metrics"
	"github.com/marmos91/relayfs/pkg/registry"
	"github.com/marmos91/relayfs/pkg/upload"
	"github.com/marmos91/relayfs/pkg/userstore"
	"github.com/marmos91/relayfs/pkg/wsserver/auth"
	"github.com/marmos91/relayfs/pkg/wsserver/handlers"
	"github.com/marmos91/relayfs/pkg/wsserver/middleware"
)

// NewRouter builds the chi router for the HTTP/WS listener: health probes,
// the login/refresh/me auth routes, download-code minting, and the /ws
// upgrade endpoint.
//
// Routes:
//   - GET /health, /health/ready - liveness/readiness
//   - POST /api/v1/auth/login, /refresh - unauthenticated
//   - GET /api/v1/auth/me - requires a bearer access token
//   - POST /api/v1/downloads - mints a download code from username+token
//   - GET /api/v1/downloads/{code} - resolves a code (stub: 501)
//   - GET /ws - upgrades to the session's WebSocket, with optional bearer auth
//
// wsMetrics may be nil, in which case connection/establish/broadcast/upload
// metrics collection is disabled.
func NewRouter(reg *registry.Registry, users userstore.UserStore, uploads *upload.Coordinator, jwtService *auth.Service, nowNS func() int64, wsMetrics metrics.WSMetrics) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(reg)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(users, jwtService)
	downloadHandler := handlers.NewDownloadHandler(users, uploads, nowNS)
	wsHandler := handlers.NewWSHandler(reg, users, uploads, jwtService)
	if wsMetrics != nil {
		wsHandler.SetMetrics(wsMetrics)
		uploads.SetMetrics(wsMetrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(jwtService))
				r.Get("/me", authHandler.Me)
			})
		})

		r.Route("/downloads", func(r chi.Router) {
			r.Post("/", downloadHandler.Mint)
			r.Get("/{code}", downloadHandler.Stream)
		})
	})

	r.Get("/ws", wsHandler.Upgrade)

	return r
}

// requestLogger logs request start at DEBUG and completion at INFO,
// mirroring the console/file dual-sink convention the rest of the service
// uses for its structured logs.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimw.GetReqID(r.Context())

		logger.Debug("http request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("http request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
