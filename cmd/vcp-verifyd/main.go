package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vcp_verifier/internal/config"
	"vcp_verifier/internal/logging"
	"vcp_verifier/internal/policy"
	"vcp_verifier/internal/server"
	"vcp_verifier/internal/verify"
)

func main() {
	configFile := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogJSON, logging.ParseLevel(cfg.LogLevel))

	ruleTable := policy.DefaultRuleTable()
	if cfg.RulesFile != "" {
		ruleTable, err = policy.LoadRuleTable(cfg.RulesFile)
		if err != nil {
			slog.Error("rule table load failed", "err", err)
			os.Exit(1)
		}
	}

	engineCfg := verify.Config{Rules: ruleTable, AnchorTimeout: cfg.AnchorTimeout}
	if cfg.Tier != "" {
		tier, err := policy.ParseTier(cfg.Tier)
		if err != nil {
			slog.Error("invalid tier", "err", err)
			os.Exit(1)
		}
		engineCfg.Tier = tier
	}
	if cfg.AnchorsFile != "" {
		engineCfg.Anchors = verify.FileAnchorSource{Path: cfg.AnchorsFile}
	}

	handler := &server.Handler{
		Engine:      verify.New(engineCfg),
		RuleTable:   ruleTable,
		DefaultPack: cfg.PackDir,
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.New(handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("verifier listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
	}
}
