package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ericfisherdev/activityreport/internal/application"
	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

// Format is an output encoding of a report run.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ParseFormat validates a format name. Empty selects FormatMarkdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", "markdown":
		return FormatMarkdown, nil
	case FormatMarkdown, FormatHTML, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q: expected md, html or json", s)
}

// ContentType returns the HTTP media type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "text/markdown; charset=utf-8"
}

// Document is the JSON form of a report run.
type Document struct {
	RunID      string         `json:"run_id"`
	User       string         `json:"user"`
	Start      string         `json:"start"`
	End        string         `json:"end"`
	Source     string         `json:"source"`
	Summary    string         `json:"summary"`
	Statistics StatisticsView `json:"statistics"`
	Activities []ActivityView `json:"activities"`
}

// StatisticsView is the JSON form of model.Statistics.
type StatisticsView struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	ByProject  map[string]int `json:"by_project"`
}

// ActivityView is the JSON form of a classified activity.
type ActivityView struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ProjectID    int64     `json:"project_id"`
	ProjectName  string    `json:"project_name"`
	Author       string    `json:"author"`
	CreatedAt    time.Time `json:"created_at"`
	WebURL       string    `json:"web_url,omitempty"`
	Category     string    `json:"category"`
	MatchReasons []string  `json:"match_reasons"`
}

// NewDocument converts a report run into its JSON form.
func NewDocument(out *application.ReportOutcome) Document {
	doc := Document{
		RunID:      out.RunID,
		User:       out.User.Ref(),
		Start:      out.Range.Start.Format(model.DateLayout),
		End:        out.Range.End.Format(model.DateLayout),
		Source:     string(out.Source),
		Summary:    Summary(out.Result, out.Range),
		Activities: []ActivityView{},
		Statistics: StatisticsView{
			ByCategory: map[string]int{},
			ByProject:  map[string]int{},
		},
	}
	if out.Result == nil {
		return doc
	}

	doc.Statistics.Total = out.Result.Statistics.Total
	for c, n := range out.Result.Statistics.ByCategory {
		doc.Statistics.ByCategory[string(c)] = n
	}
	for p, n := range out.Result.Statistics.ByProject {
		doc.Statistics.ByProject[p] = n
	}

	for _, a := range out.Result.Activities {
		doc.Activities = append(doc.Activities, ActivityView{
			ID:           a.ID,
			Kind:         string(a.Kind),
			Title:        a.Title,
			Description:  a.Description,
			ProjectID:    a.ProjectID,
			ProjectName:  a.ProjectName,
			Author:       a.Author,
			CreatedAt:    a.CreatedAt,
			WebURL:       a.WebURL,
			Category:     string(a.Category),
			MatchReasons: out.Result.MatchReasons[a.ID],
		})
	}
	return doc
}

// Write renders a report run to w in format f. An empty run renders the
// no-activity notice in the markdown and HTML formats.
func Write(w io.Writer, out *application.ReportOutcome, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(NewDocument(out)); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return nil
	case FormatHTML:
		title := opts.Title
		if title == "" {
			title = DefaultTitle
		}
		_, err := io.WriteString(w, HTMLPage(title, markdownFor(out, opts)))
		return err
	default:
		_, err := io.WriteString(w, markdownFor(out, opts))
		return err
	}
}

func markdownFor(out *application.ReportOutcome, opts Options) string {
	if out.Empty() {
		return NoActivityNotice(out.User, out.Range) + "\n"
	}
	return Markdown(out.Result, out.Range, opts)
}
