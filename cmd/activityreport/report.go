package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ericfisherdev/activityreport/internal/adapter/driving/report"
	"github.com/ericfisherdev/activityreport/internal/application"
	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

type reportFlags struct {
	start       string
	end         string
	source      string
	groupBy     string
	format      string
	output      string
	title       string
	showReasons bool
	noStats     bool
	maxDescLen  int
}

func reportCmd(v *viper.Viper) *cobra.Command {
	var f reportFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an activity report for a date range",
		Example: `  activityreport report --start 2025-03-10
  activityreport report --start 2025-03-01 --end 2025-03-31 --group-by category --format html -o march.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, format, opts, err := f.parse(time.Now())
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					slog.Error("error closing cache", "error", err)
				}
			}()

			out, err := a.reports.Run(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}

			if f.output == "" {
				return report.Write(cmd.OutOrStdout(), out, format, opts)
			}
			if err := writeReportFile(f.output, out, format, opts); err != nil {
				return err
			}
			if !out.Empty() {
				printSummary(cmd.ErrOrStderr(), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.start, "start", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day of the range (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&f.source, "source", string(model.SourceEvents), "activity source: events or commits")
	cmd.Flags().StringVar(&f.groupBy, "group-by", string(report.GroupByProject), "group activities by project, category, kind or none")
	cmd.Flags().StringVar(&f.format, "format", string(report.FormatMarkdown), "output format: md, html or json")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().StringVar(&f.title, "title", "", "report title")
	cmd.Flags().BoolVar(&f.showReasons, "show-reasons", false, "list the classification match reasons")
	cmd.Flags().BoolVar(&f.noStats, "no-stats", false, "omit the statistics section")
	cmd.Flags().IntVar(&f.maxDescLen, "max-description", 0, "truncate descriptions to this many characters")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

// parse validates the flags before any remote call is made.
func (f reportFlags) parse(now time.Time) (application.ReportRequest, report.Format, report.Options, error) {
	var opts report.Options

	dr, err := application.ParseDateRange(f.start, f.end, now)
	if err != nil {
		return application.ReportRequest{}, "", opts, err
	}

	source := model.Source(f.source)
	if !source.Valid() {
		return application.ReportRequest{}, "", opts, fmt.Errorf("unknown source %q: use events or commits", f.source)
	}

	format, err := report.ParseFormat(f.format)
	if err != nil {
		return application.ReportRequest{}, "", opts, err
	}

	opts = report.DefaultOptions()
	if opts.GroupBy, err = report.ParseGroupBy(f.groupBy); err != nil {
		return application.ReportRequest{}, "", opts, err
	}
	opts.ShowMatchReasons = f.showReasons
	opts.ShowStatistics = !f.noStats
	if f.title != "" {
		opts.Title = f.title
	}
	if f.maxDescLen > 0 {
		opts.MaxDescriptionLength = f.maxDescLen
	}

	return application.ReportRequest{Range: dr, Source: source}, format, opts, nil
}

// writeReportFile renders the report to path. A failed close is reported
// since it can lose buffered output.
func writeReportFile(path string, out *application.ReportOutcome, format report.Format, opts report.Options) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
	}()

	return report.Write(file, out, format, opts)
}

func printSummary(w io.Writer, out *application.ReportOutcome) {
	fmt.Fprintln(w, report.Summary(out.Result, out.Range))
}
