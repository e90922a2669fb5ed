package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"proctor-integrity/backend/internal/audit"
	auditrepo "proctor-integrity/backend/internal/audit/repository"
	"proctor-integrity/backend/internal/config"
	"proctor-integrity/backend/internal/db"
	devicerepo "proctor-integrity/backend/internal/device/repository"
	"proctor-integrity/backend/internal/health"
	identityservice "proctor-integrity/backend/internal/identity/service"
	"proctor-integrity/backend/internal/ingest"
	ingestrepo "proctor-integrity/backend/internal/ingest/repository"
	"proctor-integrity/backend/internal/policy/engine"
	"proctor-integrity/backend/internal/security"
	"proctor-integrity/backend/internal/server"
	"proctor-integrity/backend/internal/server/httpapi"
	"proctor-integrity/backend/internal/server/middleware"
	sessionrepo "proctor-integrity/backend/internal/session/repository"
	tamperrepo "proctor-integrity/backend/internal/tamper/repository"
	"proctor-integrity/backend/internal/tamper/review"
	"proctor-integrity/backend/internal/telemetry"
	telemetryotel "proctor-integrity/backend/internal/telemetry/otel"
	userrepo "proctor-integrity/backend/internal/user/repository"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.AuthEnabled() {
		log.Fatal("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis: ping %s failed, rate limiting fails open until it recovers: %v", cfg.RedisAddr, err)
		}
	}

	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	policySource, err := engine.LoadPolicyFile(cfg.ReviewPolicyPath)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	evaluator, err := engine.NewOPAEvaluator(policySource)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(pool), middleware.GetClientIP)
	users := userrepo.NewPostgresRepository(pool)
	flags := tamperrepo.NewPostgresRepository(pool)

	authSvc := identityservice.NewAuthService(
		users,
		sessionrepo.NewPostgresRepository(pool),
		tokens,
		cfg.RefreshTTL(),
		cfg.RefreshTokensPerUser,
		auditLogger,
		emitter,
	)
	ingestSvc := ingest.NewService(
		ingestrepo.NewPostgresStore(pool),
		devicerepo.NewPostgresRepository(pool),
		ingest.Config{MaxBatch: cfg.IngestMaxBatch, MaxSeq: cfg.IngestMaxSequence},
		auditLogger,
		emitter,
	)
	reviewSvc := review.NewService(users, flags, evaluator, auditLogger, emitter)

	var redisPinger health.Pinger
	var limiter redis.Scripter
	if rdb != nil {
		redisPinger = health.RedisPinger(rdb)
		limiter = rdb
	}
	checker := health.NewChecker(pool, redisPinger, evaluator)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	api := httpapi.NewServer(httpapi.Deps{
		Ingest: ingestSvc,
		Auth:   authSvc,
		Review: reviewSvc,
		Health: checker,
		Tokens: tokens,
		Audit:  auditLogger,
		RateLimit: middleware.RateLimitConfig{
			Enabled:        cfg.RateLimitEnabled,
			Capacity:       cfg.RateLimitCapacity,
			RefillTokens:   cfg.RateLimitRefillTokens,
			RefillInterval: cfg.RateLimitInterval(),
			TTL:            cfg.RateLimitKeyTTL(),
		},
		Limiter:  limiter,
		Registry: registry,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	grpcServer := server.NewGRPCServer(checker)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
		go func() {
			log.Printf("gRPC health server listening on %s", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Println("shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcServer.GracefulStop()

	// Let in-flight async telemetry emits finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("servers stopped")
}
