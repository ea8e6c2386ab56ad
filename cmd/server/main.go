// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the triage server: a multi-tenant
// classification and routing service for inbound customer messages.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/tenantry/triage/internal/api"
	"github.com/tenantry/triage/internal/buildinfo"
	"github.com/tenantry/triage/internal/classify"
	"github.com/tenantry/triage/internal/config"
	"github.com/tenantry/triage/internal/hooks"
	"github.com/tenantry/triage/internal/llm"
	"github.com/tenantry/triage/internal/logging"
	"github.com/tenantry/triage/internal/router"
	"github.com/tenantry/triage/internal/tenant"
	"github.com/tenantry/triage/internal/trace"
	"github.com/tenantry/triage/internal/util"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("triage %s (commit %s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	// Environment overrides from .env, if present.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Warnf("Failed to configure log output: %v", err)
	}

	log.Infof("Starting triage %s (commit %s)", buildinfo.Version, buildinfo.Commit)

	if err := run(cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warnf("Config file %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := hooks.NewEventBus()
	defer bus.Shutdown()

	tenantsDir, err := util.ExpandPath(cfg.TenantsDir)
	if err != nil {
		return fmt.Errorf("invalid tenants directory: %w", err)
	}
	store := tenant.NewStore(tenantsDir)
	if err := store.Load(); err != nil {
		return fmt.Errorf("failed to load tenant profiles: %w", err)
	}

	store.OnReload = func() {
		bus.PublishAsync(&hooks.EventContext{
			Event:     hooks.EventTenantReloaded,
			Timestamp: time.Now(),
			Data:      map[string]interface{}{"tenants": store.IDs()},
		})
	}
	if err := store.StartWatcher(); err != nil {
		log.Warnf("Tenant profile watcher unavailable: %v", err)
	}
	defer store.StopWatcher()

	var invoker classify.Invoker
	if apiKey := cfg.APIKey(); apiKey != "" {
		invoker = llm.NewAnthropicInvoker(apiKey, cfg.LLM.Model, int64(cfg.LLM.MaxTokens))
	} else {
		log.Warnf("%s not set, every classification will use the rule-based path", cfg.LLM.APIKeyEnv)
	}

	classifier := classify.NewModelClassifier(invoker, cfg.LLM.Timeout())
	orchestrator := classify.NewOrchestrator(store, classifier, bus)

	var traces *trace.Collector
	if cfg.Trace.Enabled {
		var err error
		traces, err = trace.NewCollector(cfg.Trace.DBPath, cfg.Trace.RetentionDays, cfg.Trace.RedactEntities)
		if err != nil {
			return fmt.Errorf("failed to create trace collector: %w", err)
		}
		if err := traces.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize trace collector: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := traces.Shutdown(shutdownCtx); err != nil {
				log.Warnf("Trace collector shutdown: %v", err)
			}
		}()
	}

	service := api.NewService(store, orchestrator, router.New(bus), traces, cfg.RequestRetry)
	server := api.NewServer(service, cfg.Debug)

	return server.Run(ctx, cfg.Host, cfg.Port)
}
