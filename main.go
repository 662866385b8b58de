/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/config"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/server"
)

func main() {
	// Top-level panic recovery
	defer func() {
		if rec := recover(); rec != nil {
			_, _ = fmt.Fprintf(os.Stderr, "FATAL PANIC: %v\n", rec)
			os.Exit(2)
		}
	}()

	var (
		configPath = flag.String("config", "", "Path to configuration file")
		envFile    = flag.String("env", "", "Path to .env file with API keys and overrides")
		version    = flag.Bool("version", false, "Show version information")
		help       = flag.Bool("help", false, "Show help information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", global.ProgramName, global.Version)
		return
	}
	if *help {
		showHelp()
		return
	}

	// Load .env before anything reads the environment. A missing default
	// .env is fine; an explicitly named one is not.
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	var opts []config.Option
	if *configPath != "" {
		opts = append(opts, config.WithConfigPath(*configPath))
	}
	cfg := config.New(opts...)

	if err := cfg.Load(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogFile())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *logging.Logger) {
		_ = logger.Sync()
		_ = logger.Close()
	}(logger)

	logger.SetLevel(cfg.LogLevel())
	logger.Infof("%s v%s starting", global.ProgramName, global.Version)

	// A broken timeout ordering would let outer layers cancel and retry
	// calls the inner layers are still working on. Refuse to start.
	timeouts := cfg.Timeouts()
	if err := timeouts.ValidateHierarchy(); err != nil {
		logger.Fatalf("Timeout hierarchy validation failed: %v", err)
	}
	logger.Infof("Timeout hierarchy validated: tool=%ds daemon=%ds shim=%ds client=%ds",
		timeouts.WorkflowToolTimeout, timeouts.DaemonTimeout(), timeouts.ShimTimeout(), timeouts.ClientTimeout())

	if cfg.IsFirstRun() {
		logger.Infof("First run detected - created default configuration at %s", cfg.ConfigPath())
		logger.Info("Please review the configuration and set provider API keys")
	}
	if !cfg.HasEnabledProvider() {
		logger.Warn("No providers are enabled - expert analysis and chat will not work until at least one provider is enabled")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Run(); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}

func showHelp() {
	fmt.Printf(`%s v%s - MCP server for multi-step workflow tools with expert validation

USAGE:
    %s [OPTIONS]

OPTIONS:
    --config PATH    Path to configuration file
                     (default: $%s or %s/%s)
    --env PATH       Path to a .env file with API keys and overrides
    --version        Show version information
    --help           Show this help message

DESCRIPTION:
    An MCP (Model Context Protocol) server exposing multi-step workflow
    tools (analyze, codereview, debug, secaudit, thinkdeep) and a chat
    tool, backed by the Kimi (Moonshot) and GLM (Z.ai) providers.

    Workflow tools accumulate findings across steps. On the final step the
    consolidated findings can be validated by an expert model; identical
    concurrent validations are deduplicated so the provider is called at
    most once per logical request.

CONFIGURATION:
    On first run a default configuration is created in %s. Edit it to
    enable providers, then set the API keys in the environment:

    %s     API key for Kimi (Moonshot)
    %s      API key for GLM (Z.ai)

    All timeouts can be overridden per value via environment variables;
    use the timeout_summary tool to inspect the effective hierarchy.

EXAMPLES:
    # Start with default config
    %s

    # Start with custom config and env file
    %s --config /path/to/config.json --env /path/to/.env

ENVIRONMENT:
    %s    Path to configuration file (if --config not used)
`, global.ProgramName, global.Version,
		global.ProgramName,
		global.ConfigEnvVar, global.DefaultBaseDir, global.DefaultConfigFileName,
		global.DefaultBaseDir,
		global.EnvKimiAPIKey,
		global.EnvGLMAPIKey,
		global.ProgramName,
		global.ProgramName,
		global.ConfigEnvVar)
}
