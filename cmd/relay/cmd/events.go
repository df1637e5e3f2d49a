package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfrund/relay/internal/events"
)

var eventsOutputFormat string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the topics published on the observer bus",
	Long: `Lists every lifecycle topic the relay publishes on its internal event bus.

Output formats:
  table - Human-readable table format (default)
  json  - Machine-readable JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := events.DefaultCatalog()
		if err != nil {
			return err
		}
		topics := catalog.List()
		out := cmd.OutOrStdout()

		switch eventsOutputFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(topics)
		case "table":
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOPIC\tDESCRIPTION")
			for _, t := range topics {
				fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
			}
			return w.Flush()
		default:
			return fmt.Errorf("unknown format %q (valid: table, json)", eventsOutputFormat)
		}
	},
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsOutputFormat, "format", "f", "table", "output format (table, json)")
	rootCmd.AddCommand(eventsCmd)
}
