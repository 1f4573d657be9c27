package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"signaldb/internal/codec"
	"signaldb/internal/store"
)

func newGetCmd(conn *connFlags) *cobra.Command {
	var asOf string
	var seriesFrom, seriesTo string

	cmd := &cobra.Command{
		Use:   "get <source> <ticker>",
		Short: "Fetch an instrument by alias as of a point in time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, ticker := args[0], args[1]

			asOfT, err := resolveAsOf(asOf)
			if err != nil {
				return err
			}
			from, to, err := resolveSeriesWindow(seriesFrom, seriesTo)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, disconnect, err := connect(ctx, *conn)
			if err != nil {
				return err
			}
			defer disconnect(ctx)

			inst, ok, err := eng.Get(ctx, source, ticker, asOfT, from, to)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no instrument found for (%s, %s)", source, ticker)
			}

			out, err := json.MarshalIndent(inst.ToRaw(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC3339 instant to read as of (defaults to now)")
	cmd.Flags().StringVar(&seriesFrom, "series-from", "", "RFC3339 lower bound for series windows (defaults to unbounded)")
	cmd.Flags().StringVar(&seriesTo, "series-to", "", "RFC3339 upper bound for series windows (defaults to unbounded)")
	return cmd
}

func resolveAsOf(asOf string) (time.Time, error) {
	if asOf == "" {
		return codec.Now(), nil
	}
	if !codec.IsRFC3339(asOf) {
		return time.Time{}, fmt.Errorf("--as-of must be RFC3339 (YYYY-MM-DDTHH:MM:SSZ): %q", asOf)
	}
	return codec.ParseRFC3339(asOf)
}

func resolveSeriesWindow(from, to string) (time.Time, time.Time, error) {
	fromT := time.Time{}
	toT := store.OpenSentinel

	if from != "" {
		parsed, err := resolveAsOf(from)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		fromT = parsed
	}
	if to != "" {
		parsed, err := resolveAsOf(to)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		toT = parsed
	}
	return fromT, toT, nil
}
