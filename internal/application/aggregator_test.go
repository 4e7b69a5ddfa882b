package application_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/activityreport/internal/application"
	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

func newAggregator() *application.Aggregator {
	return application.NewAggregator(application.NewClassifier(), nil)
}

func TestAggregate_EmptyInput(t *testing.T) {
	result, err := newAggregator().Aggregate(nil)

	require.NoError(t, err)
	assert.Empty(t, result.Activities)
	assert.Empty(t, result.MatchReasons)
	assert.Equal(t, 0, result.Statistics.Total)
	assert.Empty(t, result.Statistics.ByProject)
	require.Len(t, result.Statistics.ByCategory, 7)
	for _, c := range model.AllCategories() {
		count, ok := result.Statistics.ByCategory[c]
		assert.True(t, ok, "category %s must be present", c)
		assert.Zero(t, count)
	}
}

func TestAggregate_ConventionalFixPrefix(t *testing.T) {
	result, err := newAggregator().Aggregate([]model.Activity{
		activity("1", "fix: null pointer crash", "api"),
	})

	require.NoError(t, err)
	require.Len(t, result.Activities, 1)
	assert.Equal(t, model.CategoryBugFix, result.Activities[0].Category)
	assert.Contains(t, result.MatchReasons["1"], `Matched keyword: "fix:" (Bug fix)`)
	assert.Equal(t, 1, result.Statistics.ByCategory[model.CategoryBugFix])
}

func TestAggregate_UpdateReadmeResolvesByPriority(t *testing.T) {
	result, err := newAggregator().Aggregate([]model.Activity{
		activity("1", "Update README with setup instructions", "docs-site"),
	})

	require.NoError(t, err)
	assert.Equal(t, model.CategoryImprovement, result.Activities[0].Category)
	assert.Equal(t, []string{`Matched keyword: "update" (Improvement)`}, result.MatchReasons["1"])
	assert.Zero(t, result.Statistics.ByCategory[model.CategoryDocumentation])
}

func TestAggregate_TwoProjectsOneUnclassifiable(t *testing.T) {
	result, err := newAggregator().Aggregate([]model.Activity{
		activity("1", "Add export button", "web-app"),
		activity("2", "Quarterly cleanup", "api"),
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"web-app": 1, "api": 1}, result.Statistics.ByProject)
	assert.Equal(t, 1, result.Statistics.ByCategory[model.CategoryOther])
	assert.Equal(t, 1, result.Statistics.ByCategory[model.CategoryFeature])
	assert.Len(t, result.MatchReasons["2"], 1, "defaulted activities still carry one reason")
}

func TestAggregate_ProjectsKeyedByDisplayName(t *testing.T) {
	a := activity("1", "Add thing", "tools")
	a.ProjectID = 1
	b := activity("2", "Add other thing", "tools")
	b.ProjectID = 2

	result, err := newAggregator().Aggregate([]model.Activity{a, b})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tools": 2}, result.Statistics.ByProject)
}

func TestAggregate_InvariantsHold(t *testing.T) {
	titles := []string{
		"fix: crash", "Add page", "Refactor store", "docs: api", "test: parser",
		"chore: deps", "Quarterly cleanup", "Bump latest version", "更新依赖", "配置",
	}
	var input []model.Activity
	for i, title := range titles {
		input = append(input, activity(fmt.Sprintf("a-%d", i), title, fmt.Sprintf("p%d", i%3)))
	}

	result, err := newAggregator().Aggregate(input)
	require.NoError(t, err)

	assert.Equal(t, len(input), result.Statistics.Total)
	assert.Equal(t, result.Statistics.Total, result.Statistics.CategorySum())
	require.Len(t, result.MatchReasons, len(input))
	for i, a := range result.Activities {
		assert.Equal(t, input[i].ID, a.ID, "input order preserved")
		assert.NotEmpty(t, result.MatchReasons[a.ID])
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	input := []model.Activity{activity("1", "fix: crash", "api")}
	input[0].Labels = []string{"bug"}

	result, err := newAggregator().Aggregate(input)
	require.NoError(t, err)

	assert.Empty(t, input[0].Category)
	result.Activities[0].Labels[0] = "changed"
	assert.Equal(t, "bug", input[0].Labels[0])
}

func TestAggregate_DuplicateIDFailsRun(t *testing.T) {
	_, err := newAggregator().Aggregate([]model.Activity{
		activity("1", "fix: crash", "api"),
		activity("1", "Add page", "api"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, application.ErrInconsistentStatistics)
}
