package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/fittrack/internal/api"
	"example.com/fittrack/internal/app"
	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/config"
	httptransport "example.com/fittrack/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config overlay")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to start tracker: %v", err)
	}

	var handlerOpts []api.Option
	if tracker.Hub != nil {
		handlerOpts = append(handlerOpts, api.WithHub(tracker.Hub))
	}
	if tracker.Outbox != nil {
		handlerOpts = append(handlerOpts, api.WithOutbox(tracker.Outbox))
	}
	handler := api.NewHandler(tracker.Service, tracker.Session, handlerOpts...)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.RequestLogger(log.Default()),
		httptransport.CORS("http://localhost:5173"),
		authMiddleware.Wrap,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("fittrack listening on %s (store=%s, motion=%s)", cfg.HTTPAddress, cfg.StoreDriver, cfg.MotionSource)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if err := tracker.Close(shutdownCtx); err != nil {
		log.Printf("tracker shutdown: %v", err)
	}
}
