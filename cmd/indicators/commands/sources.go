package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sourcesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List enabled sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range e.svc.Sources() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
