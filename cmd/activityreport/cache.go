package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

func cacheCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Inspect and maintain the response cache"}
	cmd.AddCommand(cacheStatsCmd(v))
	cmd.AddCommand(cacheClearCmd(v))
	cmd.AddCommand(cacheSweepCmd(v))
	return cmd
}

func cacheStatsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached entry counts per namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(a *app) error {
				stats := a.cache.Stats(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Cache: %s (%s, entries valid for %s)\n", a.cfg.CachePath, a.cfg.CacheBackend, a.cache.Duration())
				writeStatsTable(cmd.OutOrStdout(), stats, time.Now())
				return nil
			})
		},
	}
}

func cacheClearCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(a *app) error {
				a.cache.ClearAll(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
				return nil
			})
		},
	}
}

func cacheSweepCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired cached entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(a *app) error {
				before := totalEntries(a.cache.Stats(cmd.Context()))
				a.cache.ClearExpired(cmd.Context())
				after := totalEntries(a.cache.Stats(cmd.Context()))
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired %s, %d left.\n", before-after, entryWord(before-after), after)
				return nil
			})
		},
	}
}

func withApp(cmd *cobra.Command, v *viper.Viper, fn func(*app) error) error {
	a, err := newApp(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()
	return fn(a)
}

// writeStatsTable renders per-namespace counts with entry ages relative to now.
func writeStatsTable(w io.Writer, stats model.CacheStats, now time.Time) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Namespace", "Entries", "Expired", "Oldest", "Newest"})
	total, expired := 0, 0
	for _, ns := range stats.Namespaces {
		tw.AppendRow(table.Row{ns.Namespace, ns.Entries, ns.Expired, age(ns.Oldest, now), age(ns.Newest, now)})
		total += ns.Entries
		expired += ns.Expired
	}
	tw.AppendFooter(table.Row{"Total", total, expired, "", ""})
	tw.Render()
}

func age(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func totalEntries(stats model.CacheStats) int {
	total := 0
	for _, ns := range stats.Namespaces {
		total += ns.Entries
	}
	return total
}

func entryWord(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
