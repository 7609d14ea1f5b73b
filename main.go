package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"upcomarr/api"
	"upcomarr/config"
	"upcomarr/handlers"
	"upcomarr/services/overlays"
	"upcomarr/services/reconciler"
	"upcomarr/services/releases"
	"upcomarr/services/stager"
	"upcomarr/services/tmdb"
	"upcomarr/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] config: %v", err)
	}

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	fs := afero.NewOsFs()

	store := releases.NewStore(fs, cfg.ReleaseStorePath)
	registry := overlays.NewRegistry(fs, cfg.OverlayPath, cfg.FramePath)
	provider := tmdb.NewClient(cfg.TMDBAPIKey, cfg.Language, nil)
	assetStager := stager.New(fs, cfg.StagingRoot)

	rec := reconciler.New(provider, store, registry, assetStager, cfg.ReleaseCountry, cfg.ReleaseType)
	rec.StartBackgroundSweep(cfg.SweepInterval)

	router := utils.NewRouter()
	router.Use(api.RequestLogMiddleware())
	handlers.NewWebhookHandler(rec).Register(router)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s (sweep interval %s)", cfg.ListenAddr, cfg.SweepInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("[main] shutting down")
	rec.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}
