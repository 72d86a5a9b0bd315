// Package main is the command-line entry point of the prophylaxis audit.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/prophylaxis-audit/internal/config"
	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/internal/logging"
	"github.com/prophylaxis-audit/internal/rules"
	"github.com/prophylaxis-audit/internal/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "Shutdown signal received, abandoning audit...")
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	logLevel   string
	rulesPath  string
	format     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "prophylaxis-audit",
		Short:         "Audit surgical antibiotic prophylaxis against the institutional protocol",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "configuration file (default ./prophylaxis-audit.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "protocol rule snapshot (rules.json or SQLite file)")
	rootCmd.PersistentFlags().StringVar(&opts.format, "rules-format", "", "rule snapshot format: json or sqlite")

	rootCmd.AddCommand(auditCmd(opts))
	rootCmd.AddCommand(matchCmd(opts))
	rootCmd.AddCommand(rulesCmd(opts))
	rootCmd.AddCommand(validateCmd(opts))
	return rootCmd
}

// app is the per-command environment: configuration and logger.
type app struct {
	cfg    *domain.Config
	logger *logrus.Logger
	closer io.Closer
}

func (a *app) Close() error {
	return a.closer.Close()
}

// setup loads configuration, applies command-line overrides and builds
// the logger.
func setup(opts *rootOptions) (*app, error) {
	manager, err := config.NewManager(opts.configFile)
	if err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeConfiguration, "failed to load configuration", err, "")
	}

	cfg := manager.GetConfig()
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.rulesPath != "" {
		cfg.Rules.Path = opts.rulesPath
	}
	if opts.format != "" {
		cfg.Rules.Format = opts.format
	}
	if err := manager.Validate(); err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeConfiguration, "invalid configuration", err, "")
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeConfiguration, "failed to configure logging", err, "")
	}
	if path := manager.ConfigFileUsed(); path != "" {
		logger.WithField("config", path).Debug("Configuration file loaded")
	}
	return &app{cfg: cfg, logger: logger, closer: closer}, nil
}

// loadRules reads the configured snapshot.
func (a *app) loadRules(ctx context.Context) ([]domain.ProtocolRule, error) {
	source, err := rules.Open(a.cfg.Rules)
	if err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeRuleSource, "failed to open rule snapshot", err, "")
	}
	defer source.Close()

	loaded, err := source.LoadRules(ctx)
	if err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeRuleSource, "failed to load rules", err, "")
	}
	a.logger.WithFields(logrus.Fields{
		"path":  a.cfg.Rules.Path,
		"rules": len(loaded),
	}).Info("Protocol rules loaded")
	return loaded, nil
}

// newAuditor loads the rules and builds the audit engine.
func (a *app) newAuditor(ctx context.Context) (*service.Auditor, error) {
	loaded, err := a.loadRules(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewAuditor(a.logger, loaded, a.cfg.Audit)
}
