package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alem-hub/adaptive-engine/internal/bootstrap"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/persistence/postgres"
)

var errNeedsPostgres = errors.New("command requires postgres storage")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending database migrations.

Examples:
  adaptivectl migrate
  adaptivectl migrate status
  adaptivectl migrate rollback`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
		if e.st.DB == nil {
			return errNeedsPostgres
		}
		return bootstrap.Migrate(cmd.Context(), e.st, e.log)
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
		if e.st.DB == nil {
			return errNeedsPostgres
		}
		migrations, err := postgres.NewMigrator(e.st.DB).Status(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, m := range migrations {
			applied := "pending"
			if m.IsApplied {
				applied = m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
		}
		return w.Flush()
	}),
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last applied migration",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
		if e.st.DB == nil {
			return errNeedsPostgres
		}
		return postgres.NewMigrator(e.st.DB).Rollback(cmd.Context())
	}),
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd, migrateRollbackCmd)
	rootCmd.AddCommand(migrateCmd)
}
