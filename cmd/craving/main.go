// Command craving is the command-line front end of the craving assistant:
// an interactive chat, one-shot interpretation, catalog validation and an
// MCP stdio server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/craving/internal/config"
	"github.com/hurttlocker/craving/internal/logging"
	"github.com/hurttlocker/craving/internal/recommend"
)

var version = "0.1.0-dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	catalog    string
	dbPath     string
	scorer     string
	timezone   string
	ttl        string
	logLevel   string

	user          string
	glucose       float64
	glucoseAvg    float64
	trend         string
	pregnancyWeek int
}

func (g *globalFlags) resolve() (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:  g.configPath,
		CLICatalog:  g.catalog,
		CLIDBPath:   g.dbPath,
		CLIScorer:   g.scorer,
		CLITimezone: g.timezone,
		CLITTL:      g.ttl,
		CLILogLevel: g.logLevel,
	})
}

func (g *globalFlags) userContext() (recommend.UserContext, error) {
	trend, err := recommend.ParseTrend(g.trend)
	if err != nil {
		return recommend.UserContext{}, err
	}
	return recommend.UserContext{
		GlucoseLevel:   g.glucose,
		GlucoseAverage: g.glucoseAvg,
		Trend:          trend,
		PregnancyWeek:  g.pregnancyWeek,
	}, nil
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var logger *zap.Logger

	root := &cobra.Command{
		Use:   "craving",
		Short: "Interpret food cravings and recommend glucose-aware choices",
		Long: `craving turns free-text food cravings into structured records, asks
follow-up questions when something is missing, and recommends a food that
fits the user's current glucose context.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			logger, err = logging.New(cfg.LogLevel.Value, cfg.LogFormat.Value)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.craving/config.yaml)")
	pf.StringVar(&flags.catalog, "catalog", "", "food catalog YAML (default: built-in catalog)")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite file for pending conversations (default: in-memory)")
	pf.StringVar(&flags.scorer, "scorer", "", "safety scorer: risk or onnx")
	pf.StringVar(&flags.timezone, "timezone", "", "time zone for time-of-day buckets")
	pf.StringVar(&flags.ttl, "ttl", "", "how long a follow-up question stays open (e.g. 10m)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.user, "user", "default", "conversation owner")
	pf.Float64Var(&flags.glucose, "glucose", 100, "current blood glucose (mg/dL)")
	pf.Float64Var(&flags.glucoseAvg, "glucose-avg", 100, "recent average blood glucose (mg/dL)")
	pf.StringVar(&flags.trend, "trend", "stable", "glucose trend: falling, stable, rising")
	pf.IntVar(&flags.pregnancyWeek, "pregnancy-week", 0, "current pregnancy week (0 if not applicable)")

	loggerFn := func() *zap.Logger {
		if logger == nil {
			return zap.NewNop()
		}
		return logger
	}

	root.AddCommand(
		newChatCmd(flags, loggerFn),
		newInterpretCmd(flags, loggerFn),
		newCatalogCmd(flags, loggerFn),
		newMCPCmd(flags, loggerFn),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "craving %s\n", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
