package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"signaldb/internal/codec"
	"signaldb/internal/consolidate"
	"signaldb/internal/instrument"
	"signaldb/internal/merge"
)

// newConsolidateCmd consolidates a batch file and prints the result to
// stdout, leaving the file and the store untouched — useful for inspecting
// what an `upsert --consolidate` call would merge before committing it.
func newConsolidateCmd(conn *connFlags) *cobra.Command {
	var propsMode string

	cmd := &cobra.Command{
		Use:   "consolidate <file.json>",
		Short: "Consolidate a batch of instruments by primary alias and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var rawBatch []map[string]interface{}
			if err := json.Unmarshal(data, &rawBatch); err != nil {
				return err
			}

			var batch []instrument.Instrument
			for i, raw := range rawBatch {
				coerced := codec.CoerceTimes(raw).(map[string]interface{})
				if code := instrument.Validate(coerced); code != instrument.CodeOK {
					log.WithField("index", i).WithField("rule", code).
						Error("signaldb consolidate: invalid instrument, skipping")
					continue
				}
				batch = append(batch, instrument.Build(coerced))
			}

			merged := consolidate.Consolidate(batch, merge.Mode(propsMode))

			raw := make([]map[string]interface{}, len(merged))
			for i, inst := range merged {
				raw[i] = inst.ToRaw()
			}
			out, err := json.MarshalIndent(raw, "", "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}

	cmd.Flags().StringVar(&propsMode, "props-mode", "append", "properties merge mode used during consolidation: append or replace")
	return cmd
}
