package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/reconcile"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			a.logger.Info("migrations applied", zap.String("driver", a.cfg.Driver))
			return nil
		},
	}
}

func newReconcileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild cached balances and levels from the ledger once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := reconcile.New(store, nil, a.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d users, corrected %d\n", report.Checked, report.Corrected)
			return nil
		},
	}
}

func newUserCmd(a *app) *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}

	var (
		id   string
		role string
		name string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user or update its role and display name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id = strings.TrimSpace(id)
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			r := model.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.UpsertUser(cmd.Context(), model.User{ID: id, Role: r, DisplayName: strings.TrimSpace(name)}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s saved with role %s\n", id, r)
			return nil
		},
	}
	add.Flags().StringVar(&id, "id", "", "user id as sent in the X-User-ID header")
	add.Flags().StringVar(&role, "role", string(model.RoleUser), "user, moderator or admin")
	add.Flags().StringVar(&name, "name", "", "display name")

	user.AddCommand(add)
	return user
}
