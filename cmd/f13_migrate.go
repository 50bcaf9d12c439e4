package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var f13MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply holdings schema migrations",
	Long:  "Applies all pending SQL migrations to the f13_data schema in lexicographic order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("all migrations applied successfully", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	f13Cmd.AddCommand(f13MigrateCmd)
}
