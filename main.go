// This is the main entry point of the account service.
// `serve` (the default command) wires configuration, logging, the database, image storage,
// the background file runner and the HTTP router, then serves until SIGINT/SIGTERM.
// `migrate` applies pending database migrations and exits.
// @title Akun API
// @version 1.0
// @description Account service: registration, login, sessions, profiles with images.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	// `cli` provides the `serve` and `migrate` commands and their flags.
	"github.com/urfave/cli/v2"

	"github.com/user/akun-go/auth"
	"github.com/user/akun-go/background"
	"github.com/user/akun-go/config"
	"github.com/user/akun-go/db"
	"github.com/user/akun-go/logging"
	"github.com/user/akun-go/storage"
	"github.com/user/akun-go/users"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("akun exited with error")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "akun",
		Usage: "user account service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "optional dotenv file loaded before reading the environment",
			},
		},
		Before: func(c *cli.Context) error {
			// a missing .env is normal outside development
			if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", c.String("env-file"), err)
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			return serve(c.Context, true)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "migrate",
						Value: true,
						Usage: "apply pending migrations before serving",
					},
				},
				Action: func(c *cli.Context) error {
					return serve(c.Context, c.Bool("migrate"))
				},
			},
			{
				Name:  "migrate",
				Usage: "apply pending database migrations and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "migrations directory (defaults to MIGRATIONS_PATH)",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.LoadConfig()
					if err != nil {
						return err
					}
					path := cfg.MigrationsPath
					if p := c.String("path"); p != "" {
						path = p
					}
					return db.RunMigrations(cfg.DB, path, logging.New(cfg.Log))
				},
			},
		},
	}
}

func serve(parent context.Context, migrate bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrate {
		if err := db.RunMigrations(cfg.DB, cfg.MigrationsPath, log); err != nil {
			return err
		}
	}

	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	gdb, err := db.NewGorm(pool, log.WithField("component", "gorm"))
	if err != nil {
		return err
	}

	images, imagesDir, err := newImageStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.AccessTokenSecret)
	if err != nil {
		return err
	}

	runner := background.NewRunner(log.WithField("component", "background"), cfg.Storage.Workers, cfg.Storage.QueueDepth)

	service := users.NewAccountService(
		users.NewGormStore(gdb),
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		tokens,
		images,
		runner,
		cfg.Server.PublicURL,
		log,
	)
	handlers := users.NewHandlers(service, log)

	router := newRouter(routerConfig{
		log:       log,
		handlers:  handlers,
		tokens:    tokens,
		imagesDir: imagesDir,
		ping:      pool.Ping,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "storage": cfg.Storage.Driver}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown failed")
	}
	// in-flight requests may still have queued image work
	if err := runner.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("background tasks did not finish before shutdown deadline")
	}
	log.Info("server stopped")
	return nil
}

// newImageStore returns the configured image store and, for the local driver, the
// directory to serve under /images/.
func newImageStore(ctx context.Context, cfg *config.StorageConfig) (storage.ImageStore, string, error) {
	switch cfg.Driver {
	case config.StorageS3:
		s, err := storage.NewS3Store(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	default:
		s, err := storage.NewLocalStore(cfg.ImagesDir)
		if err != nil {
			return nil, "", err
		}
		return s, s.Dir(), nil
	}
}
