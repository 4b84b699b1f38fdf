package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/audit"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/compliance"
	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/cache"
	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/config"
	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/database"
	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/repository"
	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/contact-compliance-backend/internal/metrics"
	auditsvc "github.com/davidleathers/contact-compliance-backend/internal/service/audit"
	compliancesvc "github.com/davidleathers/contact-compliance-backend/internal/service/compliance"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("engine failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := telemetry.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	otelProvider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "contact-compliance-backend",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  cfg.Telemetry.ExportTimeout,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	registry, err := metrics.NewRegistry()
	if err != nil {
		return err
	}

	var entryRepo audit.EntryRepository
	var recordRepo compliance.RecordRepository
	if cfg.Database.URL != "" {
		pool, err := database.Connect(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		entryRepo = database.NewAuditRepository(pool)
		recordRepo = database.NewComplianceRepository(pool)
		logger.Info("using postgres storage")
	} else {
		entryRepo = repository.NewMemoryEntryRepository()
		recordRepo = repository.NewMemoryRecordRepository()
		logger.Warn("no database configured, using in-memory storage")
	}

	var auditCache auditsvc.Cache
	if cfg.Redis.Enabled {
		client, err := cache.NewClient(&cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		c, err := cache.NewAuditCache(client, logger)
		if err != nil {
			return err
		}
		auditCache = c
		logger.Info("audit cache enabled")
	}

	auditLog, err := auditsvc.NewLog(entryRepo, auditCache, logger, registry)
	if err != nil {
		return err
	}
	workflow, err := compliancesvc.NewWorkflow(recordRepo, auditLog, logger, registry)
	if err != nil {
		return err
	}

	logger.Info("engine started",
		"version", cfg.Version,
		"environment", cfg.Environment,
		"verify_interval", cfg.Audit.VerifyInterval)

	return runMaintenanceLoop(ctx, cfg, logger, auditLog, workflow)
}

// runMaintenanceLoop re-verifies the audit chain and expires lapsed
// approvals on a fixed interval until the context is cancelled. The rate
// limiter caps verification work even if the configured interval is very
// small.
func runMaintenanceLoop(ctx context.Context, cfg *config.Config, logger *slog.Logger, auditLog *auditsvc.Log, workflow *compliancesvc.Workflow) error {
	limiter := rate.NewLimiter(rate.Limit(cfg.Audit.VerifyRateLimit), 1)
	ticker := time.NewTicker(cfg.Audit.VerifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("engine shutting down")
			return nil
		case <-ticker.C:
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			result, err := auditLog.VerifyChain(ctx)
			if err != nil {
				logger.Error("periodic verification failed", "error", err)
				continue
			}
			if !result.Valid {
				logger.Error("audit chain integrity violation",
					"broken_at", *result.BrokenAt,
					"reason", result.Reason)
			}
			expireLapsedApprovals(ctx, logger, workflow)
		}
	}
}

// expireLapsedApprovals transitions approved records past their expiry
func expireLapsedApprovals(ctx context.Context, logger *slog.Logger, workflow *compliancesvc.Workflow) {
	system := compliance.Actor{ID: "system", Name: "engine", Email: "engine@internal"}

	lapsed, err := workflow.ExpiringWithin(ctx, 0)
	if err != nil {
		logger.Error("expiry sweep failed", "error", err)
		return
	}

	for _, record := range lapsed {
		if _, err := workflow.Transition(ctx, record.ID.String(),
			compliance.ActionExpire, system, "approval validity elapsed"); err != nil {
			logger.Error("failed to expire record",
				"record_id", record.ID, "error", err)
			continue
		}
		logger.Info("expired lapsed approval",
			"record_id", record.ID, "contact_id", record.ContactID)
	}
}
