// Command liminald runs the transaction governance pipeline as a standalone
// daemon, wiring every collaborator package together the way the teacher's
// services/payoutd/main.go wires its processor and admin server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"liminal/api"
	"liminal/audit"
	"liminal/config"
	"liminal/dryrun"
	"liminal/gate"
	"liminal/observability/logging"
	telemetry "liminal/observability/otel"
	"liminal/persistence"
	"liminal/pipeline"
	"liminal/rail"
	"liminal/risk"
	"liminal/statemachine"
	"liminal/strategy"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/liminald.yaml", "path to liminald configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LIMINAL_ENV"))
	logger := logging.Setup("liminald", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if otlpEndpoint == "" {
		otlpEndpoint = cfg.Telemetry.Endpoint
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: cfg.Service,
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	persistPath := cfg.PersistPath
	if persistPath == "" {
		persistPath = persistence.PathFromEnv()
	}
	store := persistence.New(persistPath)

	killSwitch := &gate.KillSwitch{}
	policy := gate.NewPolicyBits()
	policy.SetPrivateRailEnabled(cfg.PrivateRailEnabled)
	policy.SetSubmissionEnabled(cfg.SubmissionEnabledOrDefault())

	railAdapter := rail.NewDefaultAdapter(policy)
	submissionGate := gate.New(killSwitch, policy)

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog = audit.NewRotating(logger, cfg.AuditLogPath, cfg.AuditLogMaxSizeMB)
		defer auditLog.Close()
	} else {
		auditLog = audit.New(logger)
	}

	sm := statemachine.New()
	if store.Enabled() {
		records, err := store.Load()
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		sm.Hydrate(records)
		logger.Info("hydrated transaction snapshot", "records", len(records))
	}

	riskWeights, err := cfg.RiskWeights()
	if err != nil {
		return fmt.Errorf("load risk weights: %w", err)
	}

	// Signer and RPC are the external signing/broadcast collaborators named
	// out of scope in spec.md §1; a real deployment supplies them here. Left
	// nil, the pipeline still classifies, scores, and dry-runs transactions,
	// but SignTransaction and SubmitTransaction record a collaborator failure
	// and move the record to TX_FAILED.
	orchestrator := pipeline.New(pipeline.Config{
		StateMachine: sm,
		RiskScorer:   risk.New(riskWeights),
		Selector:     strategy.New(railAdapter),
		Executor:     dryrun.New(),
		RailAdapter:  railAdapter,
		Gate:         submissionGate,
		AuditLog:     auditLog,
	})

	if store.Enabled() {
		snapshotTicker := time.NewTicker(30 * time.Second)
		defer snapshotTicker.Stop()
		go func() {
			for range snapshotTicker.C {
				if err := store.Save(sm.Snapshot()); err != nil {
					logger.Error("snapshot save failed", "error", err.Error())
				}
			}
		}()
	}

	publicServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewTransactionServer(orchestrator, auditLog),
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
		IdleTimeout:  cfg.IdleTimeout.Duration,
	}
	adminServer := &http.Server{
		Addr:         cfg.Admin.Addr,
		Handler:      api.NewAdminServer(killSwitch, policy, cfg.Admin.Token),
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
		IdleTimeout:  cfg.IdleTimeout.Duration,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() {
		log.Printf("liminald public surface listening on %s", cfg.HTTPAddr)
		errs <- publicServer.ListenAndServe()
	}()
	go func() {
		log.Printf("liminald admin surface listening on %s", cfg.Admin.Addr)
		errs <- adminServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if store.Enabled() {
			if err := store.Save(sm.Snapshot()); err != nil {
				logger.Error("final snapshot save failed", "error", err.Error())
			}
		}
		var shutdownErr error
		if err := publicServer.Shutdown(shutdownCtx); err != nil {
			_ = publicServer.Close()
			shutdownErr = err
		}
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			_ = adminServer.Close()
			shutdownErr = err
		}
		return shutdownErr
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
