// Package httpapi exposes the authentication and image endpoints over
// HTTP using chi.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/dmitrijs2005/ecomarket/internal/logging"
	"github.com/dmitrijs2005/ecomarket/internal/server/auth"
	"github.com/dmitrijs2005/ecomarket/internal/server/metrics"
	"github.com/dmitrijs2005/ecomarket/internal/server/services"
	"github.com/dmitrijs2005/ecomarket/internal/server/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// AuthService is implemented by services.AuthService.
type AuthService interface {
	Login(ctx context.Context, identifier, password string) (*services.AuthResult, error)
	Register(ctx context.Context, username, email, password string) (*services.AuthResult, error)
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// ImageStore is implemented by storage.LocalStore.
type ImageStore interface {
	Store(ctx context.Context, originalFilename string, content io.Reader) (string, error)
	Open(name string) (*os.File, string, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps bundles what NewRouter needs. Metrics, Gatherer and Health are
// optional.
type Deps struct {
	Auth            AuthService
	Images          ImageStore
	Policy          storage.UploadPolicy
	PublicImagePath string
	Logger          logging.Logger
	Metrics         metrics.Recorder
	Gatherer        prometheus.Gatherer
	Health          Pinger
}

// NewRouter builds the HTTP handler.
//
//	POST /auth/login         public
//	POST /auth/register      public
//	GET  /auth/me            bearer
//	POST /images/upload      bearer, multipart field "file"
//	GET  /images/{filename}  public
//	GET  /health, /metrics   public
func NewRouter(deps *Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(newRecoveryMiddleware(deps.Logger))
	r.Use(newLoggingMiddleware(deps.Logger, deps.Metrics))

	authHandler := NewAuthHandler(deps.Auth, deps.Metrics)
	imageHandler := NewImageHandler(deps.Images, deps.Policy, deps.PublicImagePath, deps.Metrics, deps.Logger)
	requireBearer := newBearerMiddleware(deps.Auth, deps.Metrics)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
		r.With(requireBearer).Get("/me", authHandler.Me)
	})

	r.Route("/images", func(r chi.Router) {
		r.With(requireBearer).Post("/upload", imageHandler.Upload)
		r.Get("/{filename}", imageHandler.Serve)
	})

	r.Get("/health", healthHandler(deps.Health))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
