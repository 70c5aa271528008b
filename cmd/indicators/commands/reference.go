package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// entities [query]: list entity codes and labels, optionally filtered.
func entitiesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "entities [query]",
		Short: "List countries and aggregates known to the source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := e.svc.Entities(cmd.Context(), e.sourceName, strings.Join(args, " "))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ent := range list {
				fmt.Fprintf(tw, "%s\t%s\n", ent.Code, ent.Label)
			}
			return tw.Flush()
		},
	}
}

// indicators [query]: list indicator codes, labels and units.
func indicatorsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "indicators [query]",
		Short: "List indicators published by the source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := e.svc.Indicators(cmd.Context(), e.sourceName, strings.Join(args, " "))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ind := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", ind.Code, ind.Label, ind.Unit)
			}
			return tw.Flush()
		},
	}
}
