package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopfront/internal/cache"
	"shopfront/internal/config"
	"shopfront/internal/events"
	"shopfront/internal/http/handlers"
	"shopfront/internal/identity"
	"shopfront/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	idp := identity.NewLocal(db)

	var pub events.Publisher = events.Log{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafka(cfg.KafkaBrokers, cfg.OrderTopic)
		log.Printf("[events] kafka %v topic=%s", cfg.KafkaBrokers, cfg.OrderTopic)
	}
	defer pub.Close()

	var c cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		r := cache.NewRedis(cfg.RedisAddr)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := r.Ping(ctx); err != nil {
			log.Printf("[warn] redis %s unreachable, using in-process cache: %v", cfg.RedisAddr, err)
			r.Close()
		} else {
			c = r
			defer r.Close()
		}
		cancel()
	}

	deps := handlers.NewDeps(db, cfg, idp, c, pub)
	app := handlers.NewApp(cfg, deps)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Printf("[shutdown] draining connections")
		// Open session streams never finish on their own.
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Printf("[shutdown] %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("[server] %v", err)
	}
}
