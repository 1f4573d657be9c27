package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"signaldb/internal/instrument"
)

func newFindCmd(conn *connFlags) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "find <key>=<value> [<key>=<value> ...]",
		Short: "Find instruments whose properties match every key=value filter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := map[string]instrument.Value{}
			for _, arg := range args {
				parts := strings.SplitN(arg, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("filter %q must be in key=value form", arg)
				}
				filter[parts[0]] = instrument.String(parts[1])
			}

			asOfT, err := resolveAsOf(asOf)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, disconnect, err := connect(ctx, *conn)
			if err != nil {
				return err
			}
			defer disconnect(ctx)

			seriesFrom, seriesTo, err := resolveSeriesWindow("", "")
			if err != nil {
				return err
			}

			found, err := eng.FindInstruments(ctx, filter, asOfT, seriesFrom, seriesTo)
			if err != nil {
				return err
			}

			raw := make([]map[string]interface{}, len(found))
			for i, inst := range found {
				raw[i] = inst.ToRaw()
			}
			out, err := json.MarshalIndent(raw, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC3339 instant to read as of (defaults to now)")
	return cmd
}
