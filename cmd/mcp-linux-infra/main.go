// mcp-linux-infra is a policy-enforcing remote execution broker for Linux
// infrastructure, exposed as an MCP tool server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mipsou/mcp-linux-infra/internal/ansible"
	"github.com/mipsou/mcp-linux-infra/internal/audit"
	"github.com/mipsou/mcp-linux-infra/internal/authz"
	"github.com/mipsou/mcp-linux-infra/internal/config"
	"github.com/mipsou/mcp-linux-infra/internal/diag"
	"github.com/mipsou/mcp-linux-infra/internal/executor"
	"github.com/mipsou/mcp-linux-infra/internal/learning"
	"github.com/mipsou/mcp-linux-infra/internal/mcpserver"
	"github.com/mipsou/mcp-linux-infra/internal/policy"
	"github.com/mipsou/mcp-linux-infra/internal/remediation"
	"github.com/mipsou/mcp-linux-infra/internal/sshx"
	"github.com/mipsou/mcp-linux-infra/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
)

const (
	approvalTTL   = 24 * time.Hour
	sweepSchedule = "@every 30m"
)

func newLogger(level string) *zap.Logger {
	zapLevel := zapcore.InfoLevel
	switch strings.ToUpper(level) {
	case "DEBUG":
		zapLevel = zapcore.DebugLevel
	case "WARNING", "WARN":
		zapLevel = zapcore.WarnLevel
	case "ERROR":
		zapLevel = zapcore.ErrorLevel
	case "CRITICAL":
		zapLevel = zapcore.FatalLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapLevel)
	logger, err := zc.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func main() {
	cfg := config.Load("")

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), version)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		_ = shutdownTracing(flushCtx)
	}()

	aud, err := audit.NewLogger(logger, cfg.LogDir, 10000)
	if err != nil {
		logger.Fatal("audit sink init failed", zap.Error(err))
	}
	defer func() { _ = aud.Close() }()

	catalog := policy.Default()

	statsPath := "command_stats.json"
	if cfg.LogDir != "" {
		statsPath = filepath.Join(cfg.LogDir, "command_stats.json")
	}
	collector := learning.NewCollector(statsPath, catalog, logger)

	rules, err := authz.LoadWhitelist(cfg.WhitelistPath)
	if err != nil {
		logger.Fatal("invalid whitelist", zap.String("path", cfg.WhitelistPath), zap.Error(err))
	}
	engine := authz.NewEngine(rules, collector, logger)

	manager, err := sshx.NewManager(cfg, aud, logger)
	if err != nil {
		logger.Fatal("ssh transport init failed", zap.Error(err))
	}
	defer manager.CloseAll()

	modeInfo := sshx.DescribeAuthMode(manager.Mode())
	logger.Info("ssh authentication configured",
		zap.String("mode", string(modeInfo.Mode)),
		zap.String("security_level", modeInfo.SecurityLevel),
	)

	exec := executor.New(engine, catalog, manager, aud, logger)
	diagClient := diag.New(manager, logger, cfg.AllowedLogPaths, cfg.DefaultLogLines)
	rem := remediation.NewManager(manager, aud, logger,
		remediation.ParseImpact(cfg.ExecMaxImpact), cfg.RequireApproval)
	ans := ansible.NewRunner(exec, manager, logger)

	mcpSrv := mcpserver.New(exec, diagClient, rem, ans, collector, catalog, aud, logger)

	// Periodic sweep of expired approvals.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(sweepSchedule, func() {
		if n := engine.Cleanup(approvalTTL); n > 0 {
			logger.Info("expired command approvals purged", zap.Int("count", n))
		}
		if n := rem.Cleanup(approvalTTL); n > 0 {
			logger.Info("expired remediation proposals purged", zap.Int("count", n))
		}
	}); err != nil {
		logger.Fatal("sweep schedule invalid", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version":%q,"commit":%q}`+"\n", version, commit)
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/mcp", mcpSrv.Handler())
	mux.Handle("/mcp/", mcpSrv.Handler())

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the MCP SSE stream stays open for the whole
		// client session.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting broker",
		zap.String("addr", cfg.ListenAddr),
		zap.String("version", version),
		zap.Int("whitelist_rules", len(rules)),
		zap.Strings("allowed_hosts", cfg.AllowedHosts),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
