package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-authbridge/core"
	"github.com/spf13/cobra"
)

type prefsOptions struct {
	runtime bool
	reveal  bool
}

func newPrefsCmd(root *rootOptions) *cobra.Command {
	opts := &prefsOptions{}
	cmd := &cobra.Command{
		Use:   "prefs [namespace]",
		Short: "Dump a preference namespace",
		Long: `Dump every key of a preference namespace in key order. Secrets are
redacted unless --reveal is set. Without an argument the app settings
namespace is shown, or the runtime settings namespace with --runtime.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrefs(cmd, root, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.runtime, "runtime", false, "show the runtime settings namespace")
	cmd.Flags().BoolVar(&opts.reveal, "reveal", false, "print secret values")
	return cmd
}

func runPrefs(cmd *cobra.Command, root *rootOptions, opts *prefsOptions, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx, root)
	if err != nil {
		return err
	}
	namespace := cfg.AppPrefsNamespace
	if opts.runtime {
		namespace = cfg.RuntimePrefsNamespace()
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		namespace = strings.TrimSpace(args[0])
	}

	client, err := openClient(ctx, root)
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := preferenceStore(client, cfg, root)
	if err != nil {
		return err
	}
	values, err := store.GetAll(ctx, namespace)
	if err != nil {
		return core.StorageFailure(err, namespace)
	}

	printable := make(map[string]any, len(values))
	for key, value := range values {
		printable[key] = value
	}
	if !opts.reveal {
		printable = core.RedactSensitiveMap(printable)
	}
	keys := make([]string, 0, len(printable))
	for key := range printable {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "[%s] %d keys\n", namespace, len(keys))
	for _, key := range keys {
		fmt.Fprintf(out, "%s = %v\n", key, printable[key])
	}
	return nil
}
