// Lanprobe finds cluster components on the local subnet by UDP broadcast.
//
// A probe binds a reply port, broadcasts a query to the discovery port and
// waits for the first announcement that answers it. A responder is the
// other side: it listens on the discovery port and answers every query.
//
// Usage:
//
//	lanprobe probe [--tui]
//	lanprobe respond [--mdns]
//	lanprobe scan
//
// See 'lanprobe --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/lanprobe/internal/config"
	"github.com/muurk/lanprobe/internal/logging"
	"github.com/muurk/lanprobe/internal/version"
)

// Global flags
var (
	logLevel   string
	configPath string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "lanprobe",
	Short: "LAN component discovery over UDP broadcast",
	Long: `Find cluster components on the local subnet without any configuration.

A probe broadcasts a query and waits for a responder to announce itself.
Run 'lanprobe respond' on the machine that should be found and
'lanprobe probe' on the machine looking for it.

Settings come from the config file (see 'lanprobe config show'); command
flags override them.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: OS config dir)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Banner("lanprobe"))
	},
}

// exitError carries a process exit status through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.LoadGlobal()
	}
	return config.Load(configPath)
}
