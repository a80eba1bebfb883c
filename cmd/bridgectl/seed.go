package main

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-authbridge/core"
	"github.com/spf13/cobra"
)

type seedOptions struct {
	namespace string
	bundle    core.CredentialBundle
}

func newSeedCmd(root *rootOptions) *cobra.Command {
	opts := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write an app credential into the preference store",
		Long: `Write an app credential into the app settings namespace using the key
layout of the host login flow. Empty fields remove their key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.namespace, "namespace", "", "app settings namespace (defaults to config)")
	cmd.Flags().StringVar(&opts.bundle.Token, "token", "", "access token")
	cmd.Flags().StringVar(&opts.bundle.RefreshToken, "refresh-token", "", "refresh token")
	cmd.Flags().StringVar(&opts.bundle.Username, "username", "", "username")
	cmd.Flags().StringVar(&opts.bundle.UserID, "user-id", "", "user id")
	cmd.Flags().StringVar(&opts.bundle.Password, "password", "", "password")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func runSeed(cmd *cobra.Command, root *rootOptions, opts *seedOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx, root)
	if err != nil {
		return err
	}
	namespace := strings.TrimSpace(opts.namespace)
	if namespace == "" {
		namespace = cfg.AppPrefsNamespace
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
	edit := core.AppCredentialEdit(namespace, opts.bundle)
	if err := store.Apply(ctx, edit); err != nil {
		return core.StorageFailure(err, namespace)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d keys into %s (removed %d)\n", len(edit.Set), namespace, len(edit.Remove))
	return nil
}
