// Command blogd serves the blog API and carries the operator tooling around
// it: migrations, cache administration and admin token hashing.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "blogd",
		Short:        "El Blog del CEO content server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("BLOG_CONFIG"), "YAML config file (env BLOG_CONFIG)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newCacheCmd(),
		newHashTokenCmd(),
		newVersionCmd(),
	)
	return root
}
