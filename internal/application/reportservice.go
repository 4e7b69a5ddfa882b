// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// ErrInvalidDateRange is returned for malformed or inverted report ranges.
var ErrInvalidDateRange = errors.New("invalid date range")

// ParseDateRange parses YYYY-MM-DD bounds. An empty end defaults to today.
func ParseDateRange(start, end string, today time.Time) (model.DateRange, error) {
	s, err := time.ParseInLocation(model.DateLayout, start, time.UTC)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("%w: start date %q must be YYYY-MM-DD", ErrInvalidDateRange, start)
	}

	e := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if end != "" {
		e, err = time.ParseInLocation(model.DateLayout, end, time.UTC)
		if err != nil {
			return model.DateRange{}, fmt.Errorf("%w: end date %q must be YYYY-MM-DD", ErrInvalidDateRange, end)
		}
	}

	if e.Before(s) {
		return model.DateRange{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidDateRange, e.Format(model.DateLayout), s.Format(model.DateLayout))
	}
	return model.DateRange{Start: s, End: e}, nil
}

// ReportRequest selects the user activity to report on.
type ReportRequest struct {
	Range  model.DateRange
	Source model.Source
}

// ReportOutcome is everything a renderer needs for one run.
type ReportOutcome struct {
	RunID      string
	User       model.UserMeta
	Range      model.DateRange
	Source     model.Source
	EventCount int
	Result     *model.ClassificationResult
}

// Empty reports whether the run found no activity to render.
func (o *ReportOutcome) Empty() bool {
	return o.Result == nil || len(o.Result.Activities) == 0
}

// ReportService runs the ingestion, classification and aggregation pipeline.
type ReportService struct {
	client     driven.ActivityClient
	resolver   *Resolver
	normalizer *Normalizer
	aggregator *Aggregator
	logger     *slog.Logger
}

// NewReportService wires the pipeline. cache may be nil.
func NewReportService(client driven.ActivityClient, cache *ResponseCache, concurrency int, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	resolver := NewResolver(client, cache, logger)
	return &ReportService{
		client:     client,
		resolver:   resolver,
		normalizer: NewNormalizer(resolver, resolver, concurrency, logger),
		aggregator: NewAggregator(NewClassifier(), logger),
		logger:     logger,
	}
}

// Run fetches the current user's activity in the requested range and
// classifies it. Per-project lookup failures are skipped; user, event
// listing and classification failures abort the run.
func (s *ReportService) Run(ctx context.Context, req ReportRequest) (*ReportOutcome, error) {
	if req.Source == "" {
		req.Source = model.SourceEvents
	}
	if !req.Source.Valid() {
		return nil, fmt.Errorf("unknown source %q", req.Source)
	}

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	start := time.Now()

	user, err := s.resolver.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("report run started",
		"user_id", user.ID,
		"start", req.Range.Start.Format(model.DateLayout),
		"end", req.Range.End.Format(model.DateLayout),
		"source", req.Source,
	)

	events, err := s.client.GetUserEvents(ctx, user.Ref(), req.Range.After(), req.Range.Before())
	if err != nil {
		return nil, fmt.Errorf("list events for user %d: %w", user.ID, err)
	}
	logger.Info("user events fetched", "count", len(events))

	outcome := &ReportOutcome{
		RunID:      runID,
		User:       *user,
		Range:      req.Range,
		Source:     req.Source,
		EventCount: len(events),
	}
	if len(events) == 0 {
		outcome.Result, err = s.aggregator.Aggregate(nil)
		return outcome, err
	}

	var activities []model.Activity
	switch req.Source {
	case model.SourceCommits:
		activities, err = s.commitActivities(ctx, logger, *user, req.Range, events)
	default:
		activities, err = s.normalizer.NormalizeEvents(ctx, events)
	}
	if err != nil {
		return nil, err
	}

	outcome.Result, err = s.aggregator.Aggregate(activities)
	if err != nil {
		return nil, err
	}

	logger.Info("report run complete",
		"activities", outcome.Result.Statistics.Total,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return outcome, nil
}

// commitActivities lists the user's commits in every project the events
// touched. Commits reachable from more than one project are reported once.
func (s *ReportService) commitActivities(ctx context.Context, logger *slog.Logger, user model.UserMeta, r model.DateRange, events []model.RawEvent) ([]model.Activity, error) {
	var projectIDs []int64
	seenProject := make(map[int64]bool)
	for _, ev := range events {
		if !seenProject[ev.ProjectID] {
			seenProject[ev.ProjectID] = true
			projectIDs = append(projectIDs, ev.ProjectID)
		}
	}

	author := user.Name
	if author == "" {
		author = user.Username
	}
	query := driven.CommitQuery{
		Author:      author,
		AuthorLogin: user.Username,
		Since:       r.Start,
		Until:       r.Before(),
		PerPage:     100,
		All:         true,
	}

	var activities []model.Activity
	seenCommit := make(map[string]bool)
	var failed int
	var lastErr error

	for _, id := range projectIDs {
		project, err := s.resolver.Project(ctx, id)
		if err != nil {
			failed++
			lastErr = err
			logger.Warn("skipping project: lookup failed", "project_id", id, "error", err)
			continue
		}

		commits, err := s.client.GetProjectCommits(ctx, id, query)
		if err != nil {
			failed++
			lastErr = err
			logger.Warn("skipping project: commit listing failed", "project_id", id, "error", err)
			continue
		}

		for _, act := range s.normalizer.NormalizeCommits(commits, *project) {
			if seenCommit[act.ID] {
				continue
			}
			seenCommit[act.ID] = true
			activities = append(activities, act)
		}
	}

	if len(projectIDs) > 0 && failed == len(projectIDs) {
		return nil, fmt.Errorf("%w (%d projects): %w", ErrAllLookupsFailed, len(projectIDs), lastErr)
	}
	return activities, nil
}
