package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xtding233/techrace-backend/internal/api"
	"github.com/xtding233/techrace-backend/internal/engine"
	"github.com/xtding233/techrace-backend/internal/match"
	"github.com/xtding233/techrace-backend/internal/platform/config"
	"github.com/xtding233/techrace-backend/internal/rules"
	"github.com/xtding233/techrace-backend/internal/store"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Server) error {
	loader := rules.NewLoader(cfg.ConfigDir)
	resolver := rules.NewResolver(loader)
	// fail fast on a broken rule set
	if _, _, err := resolver.Resolve("", rules.Overrides{}); err != nil {
		return err
	}
	go rules.NewFileWatcher(rules.RulePatterns(loader.Paths()), cfg.WatchInterval, func(path string) {
		log.Printf("rules: %s changed, reloading", path)
		loader.Invalidate()
	}).Run(ctx)

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := api.NewHub()
	go hub.Run(ctx)

	opts := []match.Option{match.WithNotifier(hub)}
	if cfg.Seed != 0 {
		log.Printf("dice seeded with %d", cfg.Seed)
		opts = append(opts, match.WithEngineOptions(engine.WithSeed(cfg.Seed)))
	}
	games := match.NewManager(st, resolver, opts...)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewHandler(games, hub).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcSrv := grpc.NewServer()
	api.RegisterRoundService(grpcSrv, api.NewGRPCServer(games))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errc := make(chan error, 2)
	go func() {
		log.Printf("grpc listening on %s ...", cfg.GRPCAddr)
		errc <- grpcSrv.Serve(lis)
	}()
	go func() {
		log.Printf("http listening on %s ...", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case <-ctx.Done():
		log.Println("shutting down ...")
	case err := <-errc:
		if err != nil {
			log.Printf("server error: %v", err)
		}
	}

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcSrv.GracefulStop()
	return nil
}
