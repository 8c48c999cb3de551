// main wires the dependency graph: config, stores, adapters, services, and
// the HTTP surface. Business logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sigil/internal/admin"
	"sigil/internal/audit"
	audithandler "sigil/internal/audit/handler"
	auditstore "sigil/internal/audit/store"
	"sigil/internal/contentstore"
	"sigil/internal/document"
	dochandler "sigil/internal/document/handler"
	docstore "sigil/internal/document/store"
	"sigil/internal/forensics"
	"sigil/internal/issuance"
	issuancehandler "sigil/internal/issuance/handler"
	issuancemetrics "sigil/internal/issuance/metrics"
	"sigil/internal/keyregistry"
	"sigil/internal/ledger"
	ledgercache "sigil/internal/ledger/cache"
	"sigil/internal/notify"
	"sigil/internal/platform/config"
	"sigil/internal/platform/httpserver"
	"sigil/internal/platform/kafka"
	"sigil/internal/platform/logger"
	platformredis "sigil/internal/platform/redis"
	"sigil/internal/signature"
	httptransport "sigil/internal/transport/http"
	"sigil/internal/verification"
	verificationhandler "sigil/internal/verification/handler"
	verificationmetrics "sigil/internal/verification/metrics"
	verificationstore "sigil/internal/verification/store"
	"sigil/pkg/domain"
	"sigil/pkg/platform/middleware/auth"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		docs   docstore.Store
		trail  auditstore.Store
		events verificationstore.Store
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		docs = docstore.NewPostgresStore(db)
		trail = auditstore.NewPostgresStore(db)
		events = verificationstore.NewPostgresStore(db)
		log.Info("postgres stores ready")
	} else {
		docs = docstore.NewMemoryStore()
		trail = auditstore.NewMemoryStore()
		events = verificationstore.NewMemoryStore()
		log.Warn("no postgres configured, using in-memory stores")
	}

	content, err := contentstore.NewFilesystemStore(cfg.Storage.Dir)
	if err != nil {
		log.Error("content store init", "error", err)
		os.Exit(1)
	}

	// Ledger adapter, optionally fronted by the Redis latest-anchor cache.
	var ledgerClient ledger.Client = ledger.NewHTTPClient(cfg.Ledger.BaseURL, cfg.Ledger.Timeout)
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		ledgerClient = ledgercache.New(ledgerClient, redisClient.Client, cfg.Ledger.CacheTTL, log)
		log.Info("ledger cache enabled", "ttl", cfg.Ledger.CacheTTL)
	}

	// Audit trail with optional Kafka fan-out.
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.AuditTopic, log)
	if err != nil {
		log.Error("kafka init", "error", err)
		os.Exit(1)
	}
	var stream audit.StreamSink
	if producer != nil {
		stream = producer
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := producer.Close(closeCtx); err != nil {
				log.Error("kafka close", "error", err)
			}
		}()
	}
	publisher := audit.NewPublisher(trail, stream, log)

	notifier := notify.NewLogSink(log)

	var signer *signature.Signer
	if cfg.Issuer.PrivateKeyHex != "" {
		signer, err = signature.NewSigner(cfg.Issuer.PrivateKeyHex)
		if err != nil {
			log.Error("issuer signer init", "error", err)
			os.Exit(1)
		}
		log.Info("issuer signing enabled", "identity", signer.Address())
	} else {
		log.Warn("no issuer key configured, documents will be issued unsigned")
	}

	registry := keyregistry.NewMemoryRegistry()
	for issuerID, raw := range cfg.Issuer.Registry {
		identity, err := domain.ParseAddress(raw)
		if err != nil {
			log.Error("invalid issuer registry entry", "issuer_id", issuerID, "address", raw, "error", err)
			os.Exit(1)
		}
		registry.Register(issuerID, identity)
	}
	if len(cfg.Issuer.Registry) > 0 {
		log.Info("issuer key registry seeded", "issuers", len(cfg.Issuer.Registry))
	}

	var analyzer forensics.Analyzer
	if cfg.Forensics.BaseURL != "" {
		analyzer = forensics.NewHTTPAnalyzer(cfg.Forensics.BaseURL, cfg.Forensics.APIKey, cfg.Forensics.Timeout, log)
		log.Info("forensics analysis enabled", "url", cfg.Forensics.BaseURL)
	}

	issuanceSvc := issuance.NewService(docs, content, ledgerClient, publisher, notifier, log, issuance.Options{
		Signer:  signer,
		Metrics: issuancemetrics.New(),
	})

	verificationSvc := verification.NewService(docs, content, ledgerClient, events, publisher, notifier, log, verification.Options{
		Registry:        registry,
		Forensics:       analyzer,
		Metrics:         verificationmetrics.New(),
		RequireRegistry: cfg.Ledger.RequireRegistry,
	})

	documentSvc := document.NewService(docs, ledgerClient, publisher, notifier, log)

	validator := auth.NewValidator(cfg.JWTSigningKey)
	router := httptransport.NewRouter(validator, log,
		issuancehandler.New(issuanceSvc, log),
		verificationhandler.New(verificationSvc, events, log),
		dochandler.New(documentSvc, log),
		audithandler.New(trail, log),
		admin.New(ledgerClient, publisher, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting sigil", "addr", cfg.Addr, "ledger", cfg.Ledger.BaseURL)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
