package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baxromumarov/econ-indicators/internal/core"
	"github.com/baxromumarov/econ-indicators/internal/export"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

// fetch: normalize one or more (entity, indicator) pairs and print the table.
func fetchCmd(e *env) *cobra.Command {
	var (
		entities   []string
		indicators []string
		from, to   int
		format     string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch observations for entities and indicators",
		Example: `  indicators fetch -e USA -e FRA -i NGDP_RPCH --from 2000 --to 2022
  indicators fetch -s worldbank -e BRA -i NY.GDP.MKTP.CD --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			switch format {
			case formatTable, formatCSV, formatJSON:
			default:
				return fmt.Errorf("unknown format %q (want table, csv or json)", format)
			}

			res, err := e.svc.Fetch(cmd.Context(), core.Query{
				Source:     e.sourceName,
				Entities:   entities,
				Indicators: indicators,
				From:       from,
				To:         to,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatCSV:
				err = export.WriteCSV(out, res.Table)
			case formatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				err = enc.Encode(map[string]interface{}{
					"source":       res.Source,
					"observations": res.Table.Observations,
					"pairs":        res.Pairs,
					"warnings":     res.Warnings(),
				})
			default:
				err = export.RenderText(out, res.Table)
			}
			if err != nil {
				return err
			}

			if format != formatJSON {
				for _, w := range res.Warnings() {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&entities, "entity", "e", nil, "entity code, repeatable or comma-separated (e.g. USA)")
	cmd.Flags().StringSliceVarP(&indicators, "indicator", "i", nil, "indicator code, repeatable or comma-separated (e.g. NGDP_RPCH)")
	cmd.Flags().IntVar(&from, "from", 0, "first year (inclusive)")
	cmd.Flags().IntVar(&to, "to", 0, "last year (inclusive)")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, csv or json")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("indicator")
	return cmd
}
