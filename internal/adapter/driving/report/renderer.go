// Package report renders classification results as Markdown, HTML and JSON.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

// GroupBy selects how activity details are sectioned.
type GroupBy string

const (
	GroupByProject  GroupBy = "project"
	GroupByCategory GroupBy = "category"
	GroupByKind     GroupBy = "kind"
	GroupByNone     GroupBy = "none"
)

// ParseGroupBy validates a group-by name. Empty selects GroupByProject.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(s)); g {
	case "":
		return GroupByProject, nil
	case GroupByProject, GroupByCategory, GroupByKind, GroupByNone:
		return g, nil
	}
	return "", fmt.Errorf("unknown group-by %q: expected project, category, kind or none", s)
}

// DefaultTitle heads every report unless Options.Title overrides it.
const DefaultTitle = "Activity Report"

// topProjects caps the per-project statistics list.
const topProjects = 10

const (
	detailedTimeLayout = "2006-01-02 15:04:05 MST"
	shortTimeLayout    = "Jan 02 15:04"
	dayLayout          = "Mon, 02 Jan 2006"
)

// Options controls report rendering.
type Options struct {
	GroupBy              GroupBy
	ShowStatistics       bool
	ShowMatchReasons     bool
	ShowDetailedTime     bool
	MaxDescriptionLength int
	Title                string
	TimeRangeDescription string

	// Location is the zone timestamps are shown in. Nil means UTC.
	Location *time.Location
	// GeneratedAt stamps the header. Zero means now.
	GeneratedAt time.Time
}

// DefaultOptions returns the options used when a caller sets none.
func DefaultOptions() Options {
	return Options{
		GroupBy:              GroupByProject,
		ShowStatistics:       true,
		ShowMatchReasons:     false,
		ShowDetailedTime:     true,
		MaxDescriptionLength: 200,
		Title:                DefaultTitle,
	}
}

// Markdown renders the full report document.
func Markdown(result *model.ClassificationResult, r model.DateRange, opts Options) string {
	opts = withDefaults(opts)

	var activities []model.Activity
	if result != nil {
		activities = result.Activities
	}

	sections := []string{header(r, opts)}

	if opts.ShowStatistics && len(activities) > 0 {
		sections = append(sections, statistics(result.Statistics))
	}

	if len(activities) == 0 {
		sections = append(sections, "## Activity\n\n*No matching activity found in this time range.*")
	} else {
		sections = append(sections, details(activities, result.MatchReasons, opts))
	}

	sections = append(sections, "---\n\n*Generated by activityreport*")

	return strings.Join(sections, "\n\n") + "\n"
}

// Summary renders a one-sentence overview naming the total, the two largest
// categories and the two busiest projects.
func Summary(result *model.ClassificationResult, r model.DateRange) string {
	span := TimeRange(r)
	if result == nil || len(result.Activities) == 0 {
		return fmt.Sprintf("No matching activity found for %s.", span)
	}

	parts := []string{fmt.Sprintf("%s: %s", span, plural(result.Statistics.Total, "activity", "activities"))}

	var cats []string
	for _, c := range rankCategories(result.Statistics.ByCategory) {
		if len(cats) == 2 {
			break
		}
		cats = append(cats, fmt.Sprintf("%d %s", result.Statistics.ByCategory[c], c.Description()))
	}
	if len(cats) > 0 {
		parts = append(parts, "including "+strings.Join(cats, " and "))
	}

	projects := rankProjects(result.Statistics.ByProject)
	if len(projects) > 2 {
		projects = projects[:2]
	}
	if len(projects) > 0 {
		parts = append(parts, "mostly in "+strings.Join(projects, " and "))
	}

	return strings.Join(parts, ", ") + "."
}

// NoActivityNotice is returned in place of a report when a run found nothing.
func NoActivityNotice(user model.UserMeta, r model.DateRange) string {
	who := user.Name
	if who == "" {
		who = user.Username
	}
	return fmt.Sprintf("No activity found for %s (%s) in %s.", who, user.Ref(), TimeRange(r))
}

// TimeRange describes a date range for headings and summaries.
func TimeRange(r model.DateRange) string {
	if r.SameDay() {
		return r.Start.Format(dayLayout)
	}
	return r.Start.Format(model.DateLayout) + " to " + r.End.Format(model.DateLayout)
}

func withDefaults(opts Options) Options {
	if opts.GroupBy == "" {
		opts.GroupBy = GroupByProject
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.MaxDescriptionLength <= 0 {
		opts.MaxDescriptionLength = DefaultOptions().MaxDescriptionLength
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	return opts
}

func header(r model.DateRange, opts Options) string {
	span := opts.TimeRangeDescription
	if span == "" {
		span = TimeRange(r)
	}
	return fmt.Sprintf("# %s\n\n**Time range**: %s\n**Generated**: %s",
		opts.Title, span, opts.GeneratedAt.In(opts.Location).Format(detailedTimeLayout))
}

func statistics(stats model.Statistics) string {
	sections := []string{
		"## Statistics",
		fmt.Sprintf("**Total**: %s", plural(stats.Total, "activity", "activities")),
	}

	var cats []string
	for _, c := range rankCategories(stats.ByCategory) {
		cats = append(cats, fmt.Sprintf("- **%s**: %d", c.Description(), stats.ByCategory[c]))
	}
	if len(cats) > 0 {
		sections = append(sections, "### By category", strings.Join(cats, "\n"))
	}

	projects := rankProjects(stats.ByProject)
	if len(projects) > topProjects {
		projects = projects[:topProjects]
	}
	if len(projects) > 0 {
		lines := make([]string, 0, len(projects))
		for _, p := range projects {
			lines = append(lines, fmt.Sprintf("- **%s**: %d", p, stats.ByProject[p]))
		}
		sections = append(sections, "### By project", strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

type group struct {
	heading    string
	activities []model.Activity
}

func details(activities []model.Activity, reasons map[string][]string, opts Options) string {
	sections := []string{"## Activity"}

	for _, g := range groupActivities(activities, opts.GroupBy) {
		if g.heading != "" {
			sections = append(sections, fmt.Sprintf("### %s (%s)", g.heading, plural(len(g.activities), "activity", "activities")))
		}
		for _, a := range newestFirst(g.activities) {
			sections = append(sections, activityBlock(a, reasons[a.ID], opts))
		}
	}

	return strings.Join(sections, "\n\n")
}

// groupActivities sections activities. Project and kind groups are ordered
// by size then name; category groups follow classification priority.
func groupActivities(activities []model.Activity, by GroupBy) []group {
	if by == GroupByNone {
		return []group{{activities: activities}}
	}

	index := map[string]int{}
	var groups []group
	for _, a := range activities {
		key := groupKey(a, by)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{heading: key})
		}
		groups[i].activities = append(groups[i].activities, a)
	}

	if by == GroupByCategory {
		order := map[string]int{}
		for i, c := range model.AllCategories() {
			order[c.Description()] = i
		}
		slices.SortStableFunc(groups, func(a, b group) int {
			return cmp.Compare(order[a.heading], order[b.heading])
		})
		return groups
	}

	slices.SortStableFunc(groups, func(a, b group) int {
		if c := cmp.Compare(len(b.activities), len(a.activities)); c != 0 {
			return c
		}
		return cmp.Compare(a.heading, b.heading)
	})
	return groups
}

func groupKey(a model.Activity, by GroupBy) string {
	switch by {
	case GroupByCategory:
		return a.Category.Description()
	case GroupByKind:
		return kindName(a.Kind)
	default:
		return a.ProjectName
	}
}

func newestFirst(activities []model.Activity) []model.Activity {
	sorted := slices.Clone(activities)
	slices.SortStableFunc(sorted, func(a, b model.Activity) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sorted
}

func activityBlock(a model.Activity, reasons []string, opts Options) string {
	sections := []string{"#### " + a.Title}

	info := []string{
		"**Project**: " + a.ProjectName,
		"**Kind**: " + kindName(a.Kind),
		"**Category**: " + a.Category.Description(),
		"**Author**: " + a.Author,
	}
	if opts.ShowDetailedTime {
		info = append(info, "**Created**: "+a.CreatedAt.In(opts.Location).Format(detailedTimeLayout))
		if !a.UpdatedAt.IsZero() && !a.UpdatedAt.Equal(a.CreatedAt) {
			info = append(info, "**Updated**: "+a.UpdatedAt.In(opts.Location).Format(detailedTimeLayout))
		}
	} else {
		info = append(info, "**Time**: "+a.CreatedAt.In(opts.Location).Format(shortTimeLayout))
	}
	if a.State != "" {
		info = append(info, "**State**: "+a.State)
	}
	sections = append(sections, strings.Join(info, " | "))

	if desc := strings.TrimSpace(a.Description); desc != "" {
		sections = append(sections, "**Description**: "+truncate(desc, opts.MaxDescriptionLength))
	}

	if len(a.Labels) > 0 {
		labels := make([]string, 0, len(a.Labels))
		for _, l := range a.Labels {
			labels = append(labels, "`"+l+"`")
		}
		sections = append(sections, "**Labels**: "+strings.Join(labels, " "))
	}

	if a.WebURL != "" {
		sections = append(sections, fmt.Sprintf("**Link**: [View details](%s)", a.WebURL))
	}

	if opts.ShowMatchReasons && len(reasons) > 0 {
		lines := make([]string, 0, len(reasons))
		for _, r := range reasons {
			lines = append(lines, "- "+r)
		}
		sections = append(sections, "**Match reasons**:\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// rankCategories returns the categories with a non-zero count, largest
// first, ties broken by classification priority.
func rankCategories(counts map[model.Category]int) []model.Category {
	var cats []model.Category
	for _, c := range model.AllCategories() {
		if counts[c] > 0 {
			cats = append(cats, c)
		}
	}
	slices.SortStableFunc(cats, func(a, b model.Category) int {
		return cmp.Compare(counts[b], counts[a])
	})
	return cats
}

// rankProjects returns project names, busiest first, ties by name.
func rankProjects(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names
}

func kindName(k model.ActivityKind) string {
	switch k {
	case model.ActivityKindCommit:
		return "Commit"
	case model.ActivityKindMergeRequest:
		return "Merge request"
	}
	return string(k)
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
