package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

// ErrAllLookupsFailed is returned when every raw item of a non-empty batch
// failed its metadata lookup, which points at a systemic problem rather
// than a single broken project.
var ErrAllLookupsFailed = errors.New("all project lookups failed")

// mergeBranchPrefix marks merge-commit churn dropped from every source.
const mergeBranchPrefix = "Merge branch"

// DefaultLookupConcurrency bounds concurrent project lookups.
const DefaultLookupConcurrency = 4

// ProjectResolver resolves project metadata, typically through the cache.
type ProjectResolver interface {
	Project(ctx context.Context, projectID int64) (*model.ProjectMeta, error)
}

// UserLookup returns cached user details without touching the network.
type UserLookup interface {
	CachedUser(ctx context.Context, userID int64) (*model.UserMeta, bool)
}

// Normalizer converts raw events and commits into activities.
type Normalizer struct {
	projects    ProjectResolver
	users       UserLookup
	concurrency int
	logger      *slog.Logger
}

// NewNormalizer creates a Normalizer. users may be nil.
func NewNormalizer(projects ProjectResolver, users UserLookup, concurrency int, logger *slog.Logger) *Normalizer {
	if concurrency <= 0 {
		concurrency = DefaultLookupConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{projects: projects, users: users, concurrency: concurrency, logger: logger}
}

// NormalizeEvents converts push events into activities, preserving input
// order. Projects are resolved once per distinct id, concurrently, before
// any activity is built. Events whose project cannot be resolved are logged
// and skipped; ErrAllLookupsFailed is returned only when none succeeded.
func (n *Normalizer) NormalizeEvents(ctx context.Context, events []model.RawEvent) ([]model.Activity, error) {
	projects, lookupErrs := n.resolveProjects(ctx, events)

	activities := make([]model.Activity, 0, len(events))
	var failed int
	var lastErr error

	for _, ev := range events {
		project, ok := projects[ev.ProjectID]
		if !ok {
			failed++
			lastErr = lookupErrs[ev.ProjectID]
			n.logger.Warn("skipping event: project lookup failed",
				"event_id", ev.ID,
				"project_id", ev.ProjectID,
				"error", lastErr,
			)
			continue
		}

		activity := n.eventActivity(ctx, ev, project)
		if isMergeNoise(activity.Title) {
			continue
		}
		activities = append(activities, activity)
	}

	if len(events) > 0 && failed == len(events) {
		return nil, fmt.Errorf("%w (%d events): %w", ErrAllLookupsFailed, len(events), lastErr)
	}

	if failed > 0 {
		n.logger.Info("events normalized with skips", "total", len(events), "skipped", failed)
	}
	return activities, nil
}

// NormalizeCommits converts a project's commit list into activities,
// preserving input order. The author id is unknown on this path.
func (n *Normalizer) NormalizeCommits(commits []model.RawCommit, project model.ProjectMeta) []model.Activity {
	activities := make([]model.Activity, 0, len(commits))
	for _, c := range commits {
		activity := commitActivity(c, project)
		if isMergeNoise(activity.Title) {
			continue
		}
		activities = append(activities, activity)
	}
	return activities
}

// resolveProjects looks up every distinct project id once.
func (n *Normalizer) resolveProjects(ctx context.Context, events []model.RawEvent) (map[int64]model.ProjectMeta, map[int64]error) {
	var ids []int64
	seen := make(map[int64]bool, len(events))
	for _, ev := range events {
		if !seen[ev.ProjectID] {
			seen[ev.ProjectID] = true
			ids = append(ids, ev.ProjectID)
		}
	}

	var (
		mu       sync.Mutex
		projects = make(map[int64]model.ProjectMeta, len(ids))
		errs     = make(map[int64]error)
		g        errgroup.Group
	)
	g.SetLimit(n.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			project, err := n.projects.Project(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[id] = err
				return nil
			}
			projects[id] = *project
			return nil
		})
	}
	_ = g.Wait()

	return projects, errs
}

func (n *Normalizer) eventActivity(ctx context.Context, ev model.RawEvent, project model.ProjectMeta) model.Activity {
	var title, ref string
	if ev.PushData != nil {
		title = ev.PushData.CommitTitle
		ref = ev.PushData.Ref
	}
	if title == "" {
		title = "Push to " + project.Name
	}

	author := ev.Author.Name
	if author == "" && n.users != nil {
		if u, ok := n.users.CachedUser(ctx, ev.Author.ID); ok {
			author = u.Name
		}
	}
	if author == "" {
		author = ev.Author.Username
	}

	return model.Activity{
		ID:          ev.ID,
		Kind:        model.ActivityKindCommit,
		Title:       title,
		Description: joinNonEmpty(ev.ActionName, project.Name, ref),
		CreatedAt:   ev.CreatedAt,
		ProjectName: project.Name,
		ProjectID:   project.ID,
		WebURL:      project.WebURL,
		Author:      author,
		AuthorID:    ev.Author.ID,
		Action:      ev.ActionName,
	}
}

func commitActivity(c model.RawCommit, project model.ProjectMeta) model.Activity {
	title := c.Title
	if title == "" {
		title, _, _ = strings.Cut(c.Message, "\n")
	}

	createdAt := c.CommittedDate
	if createdAt.IsZero() {
		createdAt = c.AuthoredDate
	}

	return model.Activity{
		ID:          c.ID,
		Kind:        model.ActivityKindCommit,
		Title:       title,
		Description: strings.TrimSpace(c.Message),
		CreatedAt:   createdAt,
		ProjectName: project.Name,
		ProjectID:   project.ID,
		WebURL:      c.WebURL,
		Author:      c.AuthorName,
		AuthorID:    model.UnknownAuthorID,
		Action:      "committed",
	}
}

func isMergeNoise(title string) bool {
	return strings.HasPrefix(title, mergeBranchPrefix)
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
