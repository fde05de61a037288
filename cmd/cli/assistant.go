package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <question...>",
		Short: "Ask the assistant about sales and stock",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, e *env) error {
				fmt.Fprintln(cmd.OutOrStdout(), e.app.Shop.Ask(ctx, question))
				return nil
			})
		},
	}
}
