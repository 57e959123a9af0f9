package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/memberhall/elections/internal/adapters/audit"
	"github.com/memberhall/elections/internal/adapters/handler/http"
	"github.com/memberhall/elections/internal/adapters/notify"
	"github.com/memberhall/elections/internal/adapters/repository/memory"
	"github.com/memberhall/elections/internal/adapters/repository/postgres"
	"github.com/memberhall/elections/internal/config"
	"github.com/memberhall/elections/internal/core/services"
	"github.com/memberhall/elections/pkg/logger"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	db, err := sql.Open("postgres", cfg.PostgresURL())
	if err != nil {
		zl.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		zl.Fatal("failed to reach database", zap.Error(err))
	}

	electionRepo := postgres.NewElectionRepository(db)
	voteRepo := postgres.NewVoteRepository(db)
	tokenRepo := postgres.NewTokenRepository(db)

	// The member directory belongs to the membership platform; swap in its
	// client here once the service boundary lands.
	directory := memory.NewDirectory()

	auditSink := audit.NewZapSink(zl)
	notifier := notify.NewLogNotifier(zl)

	hasher := services.NewVoterHasher()
	signer := services.NewVoteSigner(cfg.VoteSigningSecret)
	eligibility := services.NewEligibilityEvaluator(voteRepo, directory, hasher)
	tally := services.NewTallyService()

	electionService := services.NewElectionService(electionRepo, auditSink)
	lifecycleService := services.NewLifecycleService(electionRepo, voteRepo, tokenRepo, tally, auditSink, notifier)
	castingService := services.NewCastingService(electionRepo, voteRepo, eligibility, hasher, signer, auditSink)
	tokenService := services.NewTokenService(electionRepo, tokenRepo, directory, notifier, hasher, signer, auditSink)
	proxyService := services.NewProxyService(electionRepo, voteRepo, directory, auditSink, notifier)
	integrityService := services.NewIntegrityService(electionRepo, voteRepo, tokenRepo, signer, auditSink)

	handler := http.NewHandler(http.Handlers{
		Elections: http.NewElectionHandler(electionService, lifecycleService),
		Votes:     http.NewVoteHandler(castingService),
		Tokens:    http.NewTokenHandler(tokenService),
		Proxies:   http.NewProxyHandler(proxyService),
		Integrity: http.NewIntegrityHandler(integrityService),
	}, cfg.JWTSecret)

	server := &stdhttp.Server{Addr: "0.0.0.0:" + cfg.RestPort, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		zl.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Fatal("shutdown failed", zap.Error(err))
	}
}
