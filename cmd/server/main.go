package main

import (
	"context"
	"crypto"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelplane/authcore/internal/authz"
	"modelplane/authcore/internal/config"
	"modelplane/authcore/internal/db"
	"modelplane/authcore/internal/identity/repository"
	"modelplane/authcore/internal/identity/service"
	"modelplane/authcore/internal/ratelimit"
	"modelplane/authcore/internal/rotation"
	"modelplane/authcore/internal/security"
	"modelplane/authcore/internal/securityevent"
	"modelplane/authcore/internal/server"
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

	digester, err := security.NewSecretDigester([]byte(cfg.DigestKey))
	if err != nil {
		log.Fatalf("digester: %v", err)
	}

	sessions := sessionrepo.NewPostgresStore(database, cfg.MaxSessionsPerSubject)
	users := repository.NewPostgresUserRepo(database)
	identities := repository.NewPostgresIdentityRepo(database)
	subjects := service.NewSubjectDirectory(users)

	issuerCfg := security.IssuerConfig{
		Alg:           cfg.SigningAlg,
		Secret:        []byte(cfg.SigningKey),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		AccessTTL:     cfg.AccessTTL(),
		DefaultScopes: authz.ScopesFor,
	}
	if cfg.SigningAlg != "HS256" {
		var priv crypto.Signer
		if priv, err = security.ParsePrivateKey(cfg.PrivateKey); err != nil {
			log.Fatalf("private key: %v", err)
		}
		pub, err := security.ParsePublicKey(cfg.PublicKey)
		if err != nil {
			log.Fatalf("public key: %v", err)
		}
		issuerCfg.PrivateKey = priv
		issuerCfg.PublicKey = pub
	}
	issuer, err := security.NewIssuer(issuerCfg, sessions)
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}

	kafkaSink, err := securityevent.NewKafkaSink(cfg.KafkaBrokersList(), cfg.SecurityEventTopic)
	if err != nil {
		log.Fatalf("kafka sink: %v", err)
	}
	defer kafkaSink.Close()
	var kafka securityevent.Sink
	if kafkaSink != nil {
		kafka = kafkaSink
	}
	events := securityevent.NewFanout(securityevent.NewPostgresSink(database), kafka)

	engine, err := rotation.NewEngine(rotation.Config{
		Store:       sessions,
		Digester:    digester,
		Issuer:      issuer,
		Subjects:    subjects,
		Events:      events,
		RefreshTTL:  cfg.RefreshTTL(),
		ReuseWindow: cfg.ReuseWindow(),
		MaxDepth:    cfg.RotationMaxDepth,
	})
	if err != nil {
		log.Fatalf("rotation engine: %v", err)
	}

	auth := service.NewAuthService(
		users, identities, sessions,
		security.NewPasswordHasher(cfg.BcryptCost),
		digester, issuer, engine, events,
		cfg.RefreshTTL(),
	)

	srv := server.New(server.Config{
		Auth:           auth,
		Verifier:       issuer,
		Subjects:       subjects,
		Evaluator:      authz.NewEvaluator(),
		LoginLimiter:   ratelimit.NewInProcessLimiter(cfg.LoginRatePerMinute),
		RefreshLimiter: ratelimit.NewInProcessLimiter(cfg.RefreshRatePerMinute),
		DB:             database,
		RefreshTTL:     cfg.RefreshTTL(),
		CookieSecure:   cfg.CookieSecure,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Let in-flight async security-event records finish before the sinks go away.
	time.Sleep(securityevent.DrainDuration)
	log.Println("HTTP server stopped")
}
