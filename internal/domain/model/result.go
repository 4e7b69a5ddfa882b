package model

// Statistics aggregates a classification run. ByCategory always carries a
// key for every category, ByProject is keyed by project display name.
type Statistics struct {
	Total      int
	ByCategory map[Category]int
	ByProject  map[string]int
}

// ClassificationResult is the output of a classification run. Activities keep
// their input order; MatchReasons has exactly one entry per activity id.
type ClassificationResult struct {
	Activities   []Activity
	MatchReasons map[string][]string
	Statistics   Statistics
}

// NewStatistics returns zeroed statistics with every category present.
func NewStatistics() Statistics {
	byCategory := make(map[Category]int, len(taxonomy)+1)
	for _, c := range AllCategories() {
		byCategory[c] = 0
	}
	return Statistics{
		ByCategory: byCategory,
		ByProject:  map[string]int{},
	}
}

// CategorySum returns the sum of the per-category counters.
func (s Statistics) CategorySum() int {
	sum := 0
	for _, n := range s.ByCategory {
		sum += n
	}
	return sum
}
