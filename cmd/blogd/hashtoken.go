package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/pipeaalzamora/el-blog-del-ceo/auth"
)

func newHashTokenCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash to set as ADMIN_TOKEN_HASH",
		Long:  "Hashes the admin token given as argument, or read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no token given")
				}
				token = strings.TrimSpace(line)
			}
			hash, err := auth.HashToken(token, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
