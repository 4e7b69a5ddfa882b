package application

import (
	"strings"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

// Classifier assigns activities to categories using the keyword taxonomy.
//
// Keywords match as plain substrings of the lower-cased title and
// description, so "test" also matches inside "latest". Categories are tried
// in taxonomy order and the first one with any match wins.
type Classifier struct {
	rules []model.CategoryRule
}

// NewClassifier creates a Classifier over the default taxonomy.
func NewClassifier() *Classifier {
	return &Classifier{rules: model.Taxonomy()}
}

// Classify returns the category of a and the keywords of that category
// found in its text, in declared order. Unmatched activities are Other
// with no keywords.
func (c *Classifier) Classify(a model.Activity) (model.Category, []string) {
	text := strings.ToLower(a.SearchText())

	for _, rule := range c.rules {
		var matched []string
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			return rule.Category, matched
		}
	}

	return model.CategoryOther, []string{}
}
