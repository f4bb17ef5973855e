package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskforge.org/internal/auth"
	"taskforge.org/internal/events"
	"taskforge.org/internal/httpapi"
	"taskforge.org/internal/obs"
	"taskforge.org/internal/pm"
	storepg "taskforge.org/internal/store/pg"
)

var version = "1.0.0"

func main() {
	obs.Init()

	secret := os.Getenv("TASKFORGE_AUTH_SECRET")
	if secret == "" {
		log.Fatal("missing TASKFORGE_AUTH_SECRET")
	}
	addr := os.Getenv("TASKFORGE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	ttl := 15 * time.Minute
	if raw := os.Getenv("TASKFORGE_TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid TASKFORGE_TOKEN_TTL: %v", err)
		}
		ttl = parsed
	}

	// Storage: Postgres when a DSN is set, in-memory otherwise.
	var (
		db        *sql.DB
		authStore auth.Store
		pmStore   pm.Service
	)
	if dsn := os.Getenv("TASKFORGE_PG_DSN"); dsn != "" {
		store, err := storepg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		authStore = auth.NewPGStore(db)
		pmStore = store
	} else {
		log.Print("TASKFORGE_PG_DSN not set, using in-memory storage")
		authStore = auth.NewMemStore()
		pmStore = pm.NewInMemory()
	}

	tokens, err := auth.NewTokens(auth.TokenConfig{
		Secret: []byte(secret),
		Issuer: "taskforge",
		TTL:    ttl,
	})
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	gateLog := func(event string, fields map[string]any) {
		entry := map[string]any{"msg": event, "level": "error"}
		for k, v := range fields {
			entry[k] = v
		}
		obs.LogRequest(entry)
	}

	authSvc, err := auth.NewService(authStore, tokens, auth.DefaultCatalog())
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	resolver, err := auth.NewResolver(tokens, authStore, auth.WithResolverLog(gateLog))
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	gate, err := auth.NewGate(authStore, auth.WithGateLog(gateLog))
	if err != nil {
		log.Fatalf("gate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := authSvc.EnsureReferenceData(ctx); err != nil {
		log.Fatalf("ensure roles and permissions: %v", err)
	}

	bus := events.NewBus()
	recorder := pm.NewRecorder(pmStore, pm.WithRecorderLog(gateLog))
	go recorder.Run(ctx, bus)

	api := httpapi.New(httpapi.Config{
		Version:  version,
		Probe:    httpapi.ReadyProbe{DB: db},
		Resolver: resolver,
		Gate:     gate,
		Auth:     authSvc,
		PM:       pmStore,
		Bus:      bus,
	})

	handler := httpapi.SecurityHeaders(httpapi.CORS(api.Handler()))
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.RateLimit(handler, 50, 25)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting taskforge-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	cancel()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
