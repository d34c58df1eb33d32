package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postline.dev/internal/auth"
	"postline.dev/internal/config"
	"postline.dev/internal/httpapi"
	"postline.dev/internal/obs"
	"postline.dev/internal/posts"
	"postline.dev/internal/store/memory"
	"postline.dev/internal/store/pg"
	"postline.dev/internal/store/sqlite"
)

var (
	version = "dev"
	commit  = "none"
)

// backend is the storage collaborator selected by database.driver.
type backend struct {
	users auth.UserStore
	posts posts.Store
	ping  httpapi.Pinger
	io.Closer
}

func openBackend(cfg config.Database) (*backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		st := memory.New()
		return &backend{users: st.Users(), posts: st.Posts(), ping: st, Closer: st}, nil
	case config.DriverPostgres:
		st, err := pg.Open(cfg.DSN, pg.PoolOptions{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime.Std(),
		})
		if err != nil {
			return nil, err
		}
		return &backend{users: st.Users(), posts: st.Posts(), ping: st, Closer: st}, nil
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &backend{users: st.Users(), posts: st.Posts(), ping: st, Closer: st}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// listenGRPC binds the health endpoint; an empty addr disables it.
func listenGRPC(addr string) (net.Listener, error) {
	if addr == "" {
		return nil, nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}
	return lis, nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $POSTLINE_CONFIG)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		obs.Logger().Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Version == "" || cfg.Version == "dev" {
		cfg.Version = version
	}
	if cfg.Commit == "" || cfg.Commit == "none" {
		cfg.Commit = commit
	}

	obs.SetLevel(cfg.LogLevel)
	logger := obs.Logger()
	obs.Init()
	obs.InitBuildInfo(cfg.Version, cfg.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.InitTracing(ctx, obs.TracingOptions{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     cfg.Version,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	store, err := openBackend(cfg.Database)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	defer store.Close()

	tokens, err := auth.NewTokenService(cfg.Auth.Secret)
	if err != nil {
		return err
	}
	authSvc := auth.NewService(store.users, auth.NewPasswordHasher(cfg.Auth.BcryptCost), tokens)
	postSvc := posts.NewService(store.posts, logger)
	probe := httpapi.ReadyProbe{Store: store.ping}

	api := httpapi.New(httpapi.Options{
		Auth:          authSvc,
		Posts:         postSvc,
		Authenticator: auth.NewAuthenticator(tokens),
		Ready:         probe,
		Version:       cfg.Version,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Bind before any server goroutine starts.
	grpcLis, err := listenGRPC(cfg.GRPCAddr)
	if err != nil {
		return err
	}

	health := httpapi.NewHealthServer(probe, logger)
	grpcSrv := httpapi.NewGRPCServer(health)
	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	go health.Run(healthCtx, 5*time.Second)

	errc := make(chan error, 2)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "version", cfg.Version, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http listen: %w", err)
		}
	}()
	if grpcLis != nil {
		go func() {
			logger.Info("grpc health server starting", "addr", grpcLis.Addr().String())
			if err := grpcSrv.Serve(grpcLis); err != nil {
				errc <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		logger.Error("server failed", "error", err)
	}

	stopHealth()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", "error", err)
	}
	logger.Info("stopped")
	return nil
}
