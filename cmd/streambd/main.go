package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"streambd/api"
	"streambd/config"
	"streambd/handlers"
	"streambd/internal/fetch"
	"streambd/internal/memcache"
	"streambd/services/metadata"
	"streambd/services/resolve"
	"streambd/utils"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[main] invalid configuration: %v", err)
	}

	if cfg.LogFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	fetcher := fetch.NewClient(cfg.ProxySourceURL, cfg.SearchTimeout)
	tmdb := metadata.NewClient(cfg.TMDBAPIKey, &http.Client{Timeout: 10 * time.Second})
	resolver := resolve.NewService(fetcher, resolve.Config{
		Mirrors:       cfg.Mirrors,
		SearchTimeout: cfg.SearchTimeout,
		StreamTimeout: cfg.StreamTimeout,
		SearchCache:   memcache.New(cfg.SearchCacheTTL),
		StreamCache:   memcache.New(cfg.StreamCacheTTL),
	})

	router := utils.NewRouter()
	router.Use(api.NewClientRateLimiter(rate.Every(time.Second), 10).Middleware())
	handlers.NewResolveHandler(tmdb, resolver).Register(router)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.StreamTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s (mirrors: %v)", cfg.Addr, cfg.Mirrors)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}
