package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipeaalzamora/el-blog-del-ceo/internal/config"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the comments and subscribers tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			db, dialect, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", dialect)
			return nil
		},
	}
}
