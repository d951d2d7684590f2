// This file, `router.go`, assembles the HTTP router.
// It owns the middleware stack (request ids, real IP, access log, panic recovery, timeout,
// CORS) and mounts the account routes, the swagger UI, the health check and the image files.
package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	// `cors` answers preflight requests for browser clients.
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	// `httpSwagger` serves the interactive API docs.
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/akun-go/apperror"
	"github.com/user/akun-go/auth"
	_ "github.com/user/akun-go/docs" // registers the swagger doc
	"github.com/user/akun-go/logging"
	"github.com/user/akun-go/users"
)

type routerConfig struct {
	log      logrus.FieldLogger
	handlers *users.Handlers
	tokens   *auth.TokenIssuer
	// imagesDir is served under /images/ when set.
	imagesDir string
	ping      func(ctx context.Context) error
}

func newRouter(cfg routerConfig) http.Handler {
	r := chi.NewRouter()

	// chi requires middleware before routes
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(cfg.log))
	r.Use(recoverer(cfg.log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthHandler(cfg.ping))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if cfg.imagesDir != "" {
		r.Get("/images/*", imagesHandler(cfg.imagesDir))
	}

	cfg.handlers.Routes(r, auth.Authenticate(cfg.tokens, cfg.log))
	return r
}

// recoverer turns a handler panic into a logged 500 with the standard error body.
func recoverer(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				log.WithFields(logrus.Fields{
					"panic":      rvr,
					"request_id": middleware.GetReqID(r.Context()),
				}).Error("handler panicked")
				auth.WriteError(w, r, nil, apperror.NewInternalError("panic", fmt.Errorf("%v", rvr)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if ping != nil {
			if err := ping(ctx); err != nil {
				auth.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		auth.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// imagesHandler serves stored images read-only. Directory listings are not exposed.
func imagesHandler(dir string) http.HandlerFunc {
	fs := http.StripPrefix("/images/", http.FileServer(http.Dir(dir)))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	}
}
