package application

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

// ErrInconsistentStatistics is returned when a run's counters disagree with
// its input. Such a result is never returned to callers.
var ErrInconsistentStatistics = errors.New("inconsistent classification statistics")

// noMatchReason is the match reason recorded for activities defaulted to Other.
const noMatchReason = "No keyword matched, classified as Other"

// Aggregator classifies a batch of activities and computes its statistics.
type Aggregator struct {
	classifier *Classifier
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(classifier *Classifier, logger *slog.Logger) *Aggregator {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{classifier: classifier, logger: logger}
}

// Aggregate classifies every activity and returns the tagged copies, their
// match reasons and the run statistics. The input slice is not modified.
// Either every activity is accounted for or an error is returned.
func (a *Aggregator) Aggregate(activities []model.Activity) (*model.ClassificationResult, error) {
	a.logger.Info("classifying activities", "count", len(activities))

	result := &model.ClassificationResult{
		Activities:   make([]model.Activity, 0, len(activities)),
		MatchReasons: make(map[string][]string, len(activities)),
		Statistics:   model.NewStatistics(),
	}

	for _, act := range activities {
		if _, dup := result.MatchReasons[act.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate activity id %q", ErrInconsistentStatistics, act.ID)
		}

		category, keywords := a.classifier.Classify(act)
		result.Activities = append(result.Activities, act.WithCategory(category))
		result.MatchReasons[act.ID] = matchReasons(category, keywords)
		result.Statistics.ByCategory[category]++
		result.Statistics.ByProject[act.ProjectName]++
	}
	result.Statistics.Total = len(activities)

	if err := verify(result); err != nil {
		a.logger.Error("classification run rejected", "error", err)
		return nil, err
	}

	a.logger.Info("classification complete",
		"total", result.Statistics.Total,
		"projects", len(result.Statistics.ByProject),
		"other", result.Statistics.ByCategory[model.CategoryOther],
	)
	return result, nil
}

func matchReasons(category model.Category, keywords []string) []string {
	if len(keywords) == 0 {
		return []string{noMatchReason}
	}
	reasons := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		reasons = append(reasons, fmt.Sprintf("Matched keyword: \"%s\" (%s)", kw, category.Description()))
	}
	return reasons
}

func verify(r *model.ClassificationResult) error {
	s := r.Statistics
	if s.Total != len(r.Activities) {
		return fmt.Errorf("%w: total %d, activities %d", ErrInconsistentStatistics, s.Total, len(r.Activities))
	}
	if sum := s.CategorySum(); sum != s.Total {
		return fmt.Errorf("%w: category sum %d, total %d", ErrInconsistentStatistics, sum, s.Total)
	}
	projectSum := 0
	for _, n := range s.ByProject {
		projectSum += n
	}
	if projectSum != s.Total {
		return fmt.Errorf("%w: project sum %d, total %d", ErrInconsistentStatistics, projectSum, s.Total)
	}
	if len(r.MatchReasons) != len(r.Activities) {
		return fmt.Errorf("%w: %d match reason entries for %d activities", ErrInconsistentStatistics, len(r.MatchReasons), len(r.Activities))
	}
	return nil
}
