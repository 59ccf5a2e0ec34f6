// Command penwatch receives camera frames, runs the analysis pipeline on the newest one and
// tells connected control peers when to pause or resume capture
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"penwatch/internal/core/version"
	"penwatch/internal/platform/logger"

	"github.com/spf13/cobra"
)

var logFlags struct {
	Level  string
	Format string
}

var rootCmd = &cobra.Command{
	Use:           "penwatch",
	Short:         "Image intake, processing trigger and control broadcast coordinator",
	Version:       version.Info().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		initLogger(logFlags.Level, logFlags.Format)
	},
}

// initLogger lets flags override LOG_LEVEL and LOG_FORMAT
func initLogger(level, format string) {
	opt := logger.FromEnv()
	if level != "" {
		opt.Level = level
	}
	if format != "" {
		opt.Format = format
	}
	bi := version.Info()
	opt.Fields = map[string]string{"version": bi.Version, "commit": bi.Commit}
	logger.Init(opt)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		bi := version.Info()
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, built %s)\n", bi.Service, bi.Version, bi.Commit, bi.Date)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFlags.Level, "log-level", "", "trace, debug, info, warn or error (LOG_LEVEL, default info)")
	pf.StringVar(&logFlags.Format, "log-format", "", "console or json (LOG_FORMAT, default console)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// SIGINT / SIGTERM cancel every listener and the trigger
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
