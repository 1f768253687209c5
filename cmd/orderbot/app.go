package main

import (
	"context"
	"io"
	"os"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/internal/config"
	"github.com/rxtech-lab/argo-orderbot/internal/execution"
	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-orderbot/internal/trading/provider"
	"github.com/rxtech-lab/argo-orderbot/internal/version"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// application holds the process dependencies the commands share. Tests
// replace the constructors.
type application struct {
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
	newLogger func(level string) (*logger.Logger, error)
	// newProvider builds the exchange for a loaded config.
	newProvider func(cfg config.Config, log *logger.Logger) (tradingprovider.TradingSystemProvider, error)
}

func newApplication(stdout, stderr io.Writer) *application {
	return &application{
		stdout:    stdout,
		stderr:    stderr,
		lookupEnv: os.LookupEnv,
		newLogger: logger.NewLoggerWithLevel,
		newProvider: func(cfg config.Config, log *logger.Logger) (tradingprovider.TradingSystemProvider, error) {
			return cfg.NewProvider(log)
		},
	}
}

func (a *application) command() *cli.Command {
	return &cli.Command{
		Name:      "orderbot",
		Usage:     "Place orders and execution strategies on Binance USD-M futures",
		Version:   version.Version,
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		// Errors are reported by run, which owns the exit code.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or JSON config `FILE`",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Trading provider (binance-paper, binance-live, simulated)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "DuckDB `FILE` the audit events are appended to",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "Retries for transient exchange errors",
			},
		},
		Commands: []*cli.Command{
			a.marketCommand(),
			a.limitCommand(),
			a.stopLimitCommand(),
			a.ocoCommand(),
			a.twapCommand(),
			a.gridCommand(),
			a.configSchemaCommand(),
		},
	}
}

// overridesFrom collects the global flags the operator set.
func overridesFrom(cmd *cli.Command) config.Overrides {
	overrides := config.Overrides{
		Provider: cmd.String("provider"),
		LogLevel: cmd.String("log-level"),
		Journal:  cmd.String("journal"),
		Retries:  optional.None[int](),
	}

	if cmd.IsSet("retries") {
		overrides.Retries = optional.Some(int(cmd.Int("retries")))
	}

	return overrides
}

// session is one command's engine and audit pipeline.
type session struct {
	config  config.Config
	logger  *logger.Logger
	engine  *execution.Engine
	audit   *internalLog.AsyncLog
	journal *internalLog.JournalLog
}

// loadConfig reads the config file, the environment and the global flags.
func (a *application) loadConfig(cmd *cli.Command) (config.Config, error) {
	return config.LoadWithEnv(cmd.String("config"), a.lookupEnv, overridesFrom(cmd))
}

// openSession wires logger, audit sinks, provider and engine for cfg.
func (a *application) openSession(cfg config.Config, callbacks execution.Callbacks) (*session, error) {
	log, err := a.newLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	sinks := []internalLog.Log{internalLog.NewZapLog(log)}

	var journal *internalLog.JournalLog

	if cfg.Journal.Path != "" {
		journal, err = internalLog.NewJournalLog(cfg.Journal.Path, log)
		if err != nil {
			return nil, err
		}

		sinks = append(sinks, journal)
	}

	audit := internalLog.NewAsyncLog(internalLog.NewMultiLog(sinks...), cfg.Log.AuditBuffer)

	s := &session{
		config:  cfg,
		logger:  log,
		engine:  nil,
		audit:   audit,
		journal: journal,
	}

	provider, err := a.newProvider(cfg, log)
	if err != nil {
		s.Close()

		return nil, err
	}

	s.engine, err = execution.NewEngine(provider, audit, log, cfg.EngineConfig(), callbacks)
	if err != nil {
		s.Close()

		return nil, err
	}

	log.Debug("Session opened",
		zap.String("provider", cfg.Provider),
		zap.String("journal", cfg.Journal.Path),
		zap.Int("retries", cfg.Retry.MaxRetries),
	)

	return s, nil
}

// Close flushes the audit pipeline, exports and closes the journal.
func (s *session) Close() {
	s.audit.Close()

	if dropped := s.audit.Dropped(); dropped > 0 {
		s.logger.Warn("Audit events dropped", zap.Int64("count", dropped))
	}

	if s.journal != nil {
		if s.config.Journal.Export != "" {
			if err := s.journal.Export(s.config.Journal.Export); err != nil {
				s.logger.Error("Failed to export journal", zap.String("path", s.config.Journal.Export), zap.Error(err))
			}
		}

		if err := s.journal.Close(); err != nil {
			s.logger.Error("Failed to close journal", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
}
