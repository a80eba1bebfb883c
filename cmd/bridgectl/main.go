// Package main implements bridgectl, a development harness that drives the
// credential bridge against a real preference store.
package main

import (
	"io"
	"os"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	driver     string
	dsn        string
	configPath string
	appID      string
	sealKey    string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "bridgectl",
		Short: "Development harness for the credential bridge",
		Long: `bridgectl seeds, inspects and exercises the credential bridge against a
SQLite or Postgres preference store.

Examples:
  # Store an app credential the way the host login flow does
  bridgectl seed --token tok1 --username alice

  # Dump the runtime settings namespace
  bridgectl prefs --runtime

  # Run a visible, waves, terminate cycle with the conservative preset
  bridgectl simulate --preset conservative`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.driver, "driver", driverSQLite, "store driver: sqlite or postgres")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "store DSN (defaults to bridgectl.db for sqlite)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML config file")
	root.PersistentFlags().StringVar(&opts.appID, "app-id", "", "override the configured app id")
	root.PersistentFlags().StringVar(&opts.sealKey, "seal-key", "", "seal app credential secrets at rest with this key")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every send and debug event")

	root.AddCommand(newSeedCmd(opts))
	root.AddCommand(newPrefsCmd(opts))
	root.AddCommand(newSimulateCmd(opts))
	return root
}

// newLogger writes logfmt lines to the command output. Debug and trace
// events show only with --verbose.
func newLogger(out io.Writer, verbose bool) *glog.BaseLogger {
	level := "info"
	if verbose {
		level = "debug"
	}
	return glog.NewLogger(
		glog.WithName("bridgectl"),
		glog.WithWriter(out),
		glog.WithLevel(level),
		glog.WithLoggerTypeConsole(),
	)
}
