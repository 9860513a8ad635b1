// sweeper periodically deletes sessions that were revoked longer ago than
// the retention window. Lineage back-references into deleted rows null out
// at the storage layer; live sessions are never touched.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelplane/authcore/internal/config"
	"modelplane/authcore/internal/db"
	sessionrepo "modelplane/authcore/internal/session/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	store := sessionrepo.NewPostgresStore(database, cfg.MaxSessionsPerSubject)
	retention := cfg.SessionRetention()
	interval := cfg.SweepInterval()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("sweeper running every %s, retention %s", interval, retention)
	sweep(ctx, store, retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sweep(ctx, store, retention)
		case <-ctx.Done():
			log.Println("sweeper stopped")
			return
		}
	}
}

func sweep(ctx context.Context, store *sessionrepo.PostgresStore, retention time.Duration) {
	cutoff := time.Now().UTC().Add(-retention)
	n, err := store.DeleteRevokedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("sweep: %v", err)
		return
	}
	if n > 0 {
		log.Printf("sweep: deleted %d sessions revoked before %s", n, cutoff.Format(time.RFC3339))
	}
}
