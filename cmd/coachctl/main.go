package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/coachplan/internal/cli"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultSubmitTimeout  = 10 * time.Minute
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every command.
type globals struct {
	logLevel  string
	logFormat string
	logFile   string
	tz        string
	rules     string
	closeLog  func() error
}

func (g *globals) location() (*time.Location, error) {
	loc, err := time.LoadLocation(g.tz)
	if err != nil {
		return nil, fmt.Errorf("invalid --tz: %w", err)
	}
	return loc, nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Coach requirement and staffing plan tool",
		Long:          "coachctl computes coach requirements from session bookings and builds staffing plans from a roster.",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			closeLog, err := cli.SetupLogging(g.logLevel, g.logFormat, g.logFile)
			if err != nil {
				return err
			}
			g.closeLog = closeLog
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if g.closeLog != nil {
				return g.closeLog()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", envOr("COACHPLAN_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", envOr("COACHPLAN_LOG_FORMAT", "text"), "Log format: text|json")
	root.PersistentFlags().StringVar(&g.logFile, "log", "", "Also write logs to this file")
	root.PersistentFlags().StringVar(&g.tz, "tz", "UTC", "Time zone of naive datetimes and availability dates")
	root.PersistentFlags().StringVar(&g.rules, "rules", os.Getenv("COACHPLAN_RULES_PATH"), "Rule table YAML (default: built-in table)")

	root.AddCommand(newComputeCmd(g), newOptimizeCmd(g), newSubmitCmd(g), newRulesCmd())
	return root
}

func newComputeCmd(g *globals) *cobra.Command {
	cfg := &cli.ComputeConfig{}
	cmd := &cobra.Command{
		Use:   "compute <sessions.csv>",
		Short: "Compute coach requirements and write daily and weekly reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := g.location()
			if err != nil {
				return err
			}
			cfg.SessionsFile = args[0]
			cfg.RulesFile = g.rules
			cfg.Location = loc
			_, _, err = cli.Compute(cmd.Context(), cfg, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.DailyOut, "daily", "coach_requirements_daily.csv", "Daily report CSV (empty to skip)")
	cmd.Flags().StringVar(&cfg.WeeklyOut, "weekly", "coach_requirements_weekly.csv", "Weekly report CSV (empty to skip)")
	cmd.Flags().IntVar(&cfg.Parallelism, "workers", runtime.NumCPU(), "Number of calculator workers")
	return cmd
}

func newOptimizeCmd(g *globals) *cobra.Command {
	cfg := &cli.OptimizeConfig{}
	var (
		seed   int64
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "optimize <sessions.csv> <roster.csv>",
		Short: "Build a staffing plan locally and write the assignment CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := g.location()
			if err != nil {
				return err
			}
			cfg.SessionsFile, cfg.RosterFile = args[0], args[1]
			cfg.RulesFile = g.rules
			cfg.Location = loc
			if cmd.Flags().Changed("seed") {
				cfg.Seed = &seed
			}
			if cmd.Flags().Changed("strict") {
				cfg.Strict = &strict
			}
			_, _, err = cli.Optimize(cmd.Context(), cfg, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.AvailabilityFile, "availability", "", "Weekly availability grid CSV")
	cmd.Flags().StringVar(&cfg.Date, "date", "", "Plan a single day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cfg.AssignmentsOut, "out", "coach_assignments.csv", "Assignment CSV (empty to skip)")
	cmd.Flags().DurationVar(&cfg.TimeBudget, "time-budget", 0, "Solver time budget (default: rule table setting)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Search seed (default: rule table setting)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any session stays understaffed")
	cmd.Flags().IntVar(&cfg.Parallelism, "workers", runtime.NumCPU(), "Days solved concurrently")
	return cmd
}

func newSubmitCmd(g *globals) *cobra.Command {
	cfg := &cli.SubmitConfig{}
	var deadline time.Duration
	cmd := &cobra.Command{
		Use:   "submit <sessions.csv> <roster.csv>",
		Short: "Submit a staffing plan to a running service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := g.location()
			if err != nil {
				return err
			}
			cfg.SessionsFile, cfg.RosterFile = args[0], args[1]
			cfg.Location = loc
			ctx, cancel := context.WithTimeout(cmd.Context(), deadline)
			defer cancel()
			_, err = cli.Submit(ctx, cfg, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", envOr("COACHPLAN_URL", "http://localhost:9080"), "Base URL of the service")
	cmd.Flags().StringVar(&cfg.AvailabilityFile, "availability", "", "Weekly availability grid CSV")
	cmd.Flags().StringVar(&cfg.Date, "date", "", "Plan a single day (YYYY-MM-DD)")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", defaultRequestTimeout, "HTTP request timeout")
	cmd.Flags().DurationVar(&cfg.PollInterval, "poll", time.Second, "Interval between plan status checks")
	cmd.Flags().BoolVar(&cfg.Wait, "wait", true, "Wait until the plan is solved")
	cmd.Flags().DurationVar(&deadline, "deadline", defaultSubmitTimeout, "Give up waiting after this long")
	return cmd
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rules", Short: "Rule table commands"}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <rules.yaml>",
		Short: "Validate a rule table file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cli.ValidateRules(cmd.Context(), args[0], cmd.OutOrStdout())
			return err
		},
	})
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
