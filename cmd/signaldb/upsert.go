package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"signaldb/internal/codec"
	"signaldb/internal/instrument"
	"signaldb/internal/merge"
	"signaldb/internal/store"
)

func newUpsertCmd(conn *connFlags) *cobra.Command {
	var propsMode, seriesMode string
	var doConsolidate bool

	cmd := &cobra.Command{
		Use:   "upsert <file.json>",
		Short: "Merge a batch of instruments read from a JSON file",
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
						Error("signaldb upsert: invalid instrument, skipping")
					continue
				}
				batch = append(batch, instrument.Build(coerced))
			}

			ctx := cmd.Context()
			eng, disconnect, err := connect(ctx, *conn)
			if err != nil {
				return err
			}
			defer disconnect(ctx)

			log.WithField("trace_id", traceIDFrom(ctx)).WithField("count", len(batch)).
				Info("signaldb upsert: merging batch")

			return eng.Upsert(ctx, batch, store.UpsertOptions{
				PropsMergeMode:  merge.Mode(propsMode),
				SeriesMergeMode: merge.Mode(seriesMode),
				Consolidate:     doConsolidate,
			})
		},
	}

	cmd.Flags().StringVar(&propsMode, "props-mode", "append", "properties merge mode: append or replace")
	cmd.Flags().StringVar(&seriesMode, "series-mode", "append", "series merge mode: append or replace")
	cmd.Flags().BoolVar(&doConsolidate, "consolidate", false, "consolidate the batch by primary alias before merging")
	return cmd
}
