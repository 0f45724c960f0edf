// Package main is mochi-link's entry point.
//
// main's job is dependency-injection wire-up, in the same numbered-steps
// shape the teacher's main.go uses:
//  1. Load config
//  2. Open the database, run migrations
//  3. Build repositories
//  4. Build the WebSocket Hub (observer/dispatch installed after step 5,
//     since ServerManager and SubscriptionService both need the Hub to
//     exist before they can be handed back to it)
//  5. Build services
//  6. Install the Hub's observer/dispatch
//  7. Build handlers, middleware, routes
//  8. Start the HTTP server and the audit retention sweep
//  9. Graceful shutdown
//
// No package-level variables — everything is built and wired inside main.
package main

import (
	"context"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chm413/mochi-link/config"
	"github.com/chm413/mochi-link/database"
	"github.com/chm413/mochi-link/middleware"
	"github.com/chm413/mochi-link/pkg/crypto"
	"github.com/chm413/mochi-link/pkg/ratelimit"
	"github.com/chm413/mochi-link/services"
	"github.com/chm413/mochi-link/ws"
	"github.com/rs/cors"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] mochi-link hub starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}

	// ─── 2. Database ───
	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to access embedded migrations: %v", err)
	}
	db, err := database.New(cfg.DB.Path, migrationsFS)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repositories ───
	var cipherKey []byte
	if cfg.Security.EncryptionMasterKeyHex != "" {
		cipherKey, err = crypto.DeriveKey(cfg.Security.EncryptionMasterKeyHex)
		if err != nil {
			log.Fatalf("[main] invalid SECURITY_ENCRYPTION_MASTER_KEY: %v", err)
		}
	}
	repos := initRepositories(db.Conn, cipherKey)

	// ─── 4. WebSocket Hub ───
	// Observer/dispatch start nil — Hub.Admit is nil-safe against both
	// until step 6 installs the real ones.
	tokenValidator := services.NewTokenService(repos.Tokens, repos.Servers)
	hub := ws.NewHub(tokenValidator, nil, nil)

	// ─── 5. Services ───
	svc := initServices(repos, hub, cfg)

	// ─── 6. Hub wiring ───
	// ServerManager persists online/offline transitions; PendingOpsEngine
	// replays the queue the moment a handshake completes. Both fire off
	// the same event, so they're composed into one ConnectionObserver
	// rather than the Hub taking a list.
	hub.SetObserver(&services.ConnectionObserverChain{
		ServerManager: svc.Servers.(ws.ConnectionObserver),
		PendingOps:    svc.PendingOps,
	})
	hub.SetDispatch(svc.Subscriptions)

	// ─── 7. Handlers, middleware, routes ───
	loginLimiter := ratelimit.NewLoginRateLimiter(5, 2*time.Minute)
	h := initHandlers(svc, hub, loginLimiter, repos)

	wsHandler := ws.NewHandler(hub, tokenValidator, repos.Servers, cfg.Security.ChallengeResponseAuth)

	authMw := middleware.NewAuthMiddleware(svc.Auth, repos.Operators)
	permMw := middleware.NewPermissionMiddleware(repos.ACLs)

	adminMux := newRouter(h, authMw, permMw)
	wsMux := newWSRouter(wsHandler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.HTTP.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Version", "X-Request-Id"},
		AllowCredentials: true,
	})

	adminHandler := middleware.RequestID(middleware.APIVersion(corsHandler.Handler(adminMux)))

	// Two listeners: the admin API (JSON, operator JWTs, CORS) and the
	// connector WebSocket ingress (upgrade handshake, no CORS concerns)
	// are kept on separate ports so neither's load or outage affects the
	// other.
	adminSrv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      adminHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	wsSrv := &http.Server{
		Addr:         cfg.WS.Addr(),
		Handler:      wsMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections stay open indefinitely
		IdleTimeout:  0,
	}

	// ─── 8. Background: audit retention sweep ───
	// Runs once a day; deletes audit rows older than LOGGING_AUDIT_RETENTION_DAYS.
	sweepStop := make(chan struct{})
	go runAuditRetentionSweep(repos.Audit, time.Duration(cfg.Logging.AuditRetentionDays)*24*time.Hour, sweepStop)

	go func() {
		log.Printf("[main] admin API listening on %s", cfg.HTTP.Addr())
		// No TLSConfig here: HTTPConfig carries no cert/key, so the admin
		// API is expected to sit behind a TLS-terminating reverse proxy.
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] admin server error: %v", err)
		}
	}()

	go func() {
		log.Printf("[main] connector WebSocket listening on %s", cfg.WS.Addr())
		var err error
		if cfg.WS.TLSCert != "" && cfg.WS.TLSKey != "" {
			err = wsSrv.ListenAndServeTLS(cfg.WS.TLSCert, cfg.WS.TLSKey)
		} else {
			err = wsSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] ws server error: %v", err)
		}
	}()

	// ─── 9. Graceful shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done
	log.Println("[main] shutting down...")

	close(sweepStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub.Shutdown(shutdownCtx)

	if err := wsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced ws server shutdown: %v", err)
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced admin server shutdown: %v", err)
	}
	log.Println("[main] server stopped gracefully")
}

// runAuditRetentionSweep deletes audit rows older than retention once a
// day. A zero/negative retention (cfg.Logging.AuditRetentionDays) disables
// the sweep entirely — some deployments may want to keep audit history
// forever.
func runAuditRetentionSweep(audit interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}, retention time.Duration, stop <-chan struct{}) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			n, err := audit.DeleteOlderThan(context.Background(), cutoff)
			if err != nil {
				slog.Error("audit retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("audit retention sweep removed rows", "count", n, "cutoff", cutoff)
			}
		}
	}
}
