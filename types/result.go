package types

// TestStatus represents the outcome attached to a position
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
)

// ErrorDetail is one structured error extracted from a test report.
// Line is 0-based and derived from the first stack-trace frame whose fully
// qualified name contains the test's package; nil when no frame matched.
type ErrorDetail struct {
	Message string
	Line    *int
}

// Result is the outcome attached to exactly one position ID. Container
// (namespace/file) results are aggregated bottom-up from their descendants
// and are never parsed out of a report directly.
type Result struct {
	Status       TestStatus
	ShortMessage string
	Errors       []ErrorDetail
}

// ResultSet maps position IDs to their results. A test position missing
// from the set has no data, which the run coordinator treats specially.
type ResultSet map[string]Result

// Stats summarises a result set against a tree.
type Stats struct {
	Total  int // test positions in the tree
	Passed int
	Failed int
	NoData int // test positions without a result
}

// CollectStats counts outcomes for every test position in the tree.
func CollectStats(tree *PositionTree, results ResultSet) Stats {
	var s Stats
	for _, p := range tree.Tests() {
		s.Total++
		r, ok := results[p.ID]
		if !ok {
			s.NoData++
			continue
		}
		if r.Status == TestStatusFail {
			s.Failed++
		} else {
			s.Passed++
		}
	}
	return s
}
