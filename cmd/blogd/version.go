package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipeaalzamora/el-blog-del-ceo/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blogd %s\n", version.String())
		},
	}
}
