package results

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/editorkit/testbridge/junitxml"
	"github.com/editorkit/testbridge/metrics"
	"github.com/editorkit/testbridge/types"
)

// stackFrameRe matches a Java-style stack frame such as
// "at pkg.Foo.bar(FooTest.java:42)".
var stackFrameRe = regexp.MustCompile(`at\s+([\w$.<>]+)\(([^():]*):(\d+)\)`)

// Aggregator turns parsed reports into a position-keyed result set.
type Aggregator struct {
	log log.Logger
}

// NewAggregator creates an aggregator logging diagnostics to logger.
func NewAggregator(logger log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Root()
	}
	return &Aggregator{log: logger}
}

// Aggregate resolves every test case in every suite against the tree and
// then rolls statuses up through namespace and file positions.
//
// Later entries for the same position overwrite earlier ones, so repeated
// aggregation over the same reports is idempotent. A test case with no
// matching position is logged and skipped; it is not an error. Containers
// with zero resolved descendants are left unset: they simply were not
// exercised.
func (a *Aggregator) Aggregate(tree *types.PositionTree, suites []junitxml.TestSuite) types.ResultSet {
	results := make(types.ResultSet)

	for _, suite := range suites {
		for _, tc := range suite.TestCases {
			pos, ok := Match(tree, tc)
			if !ok {
				a.log.Debug("No position matched report entry",
					"classname", tc.ClassName, "name", tc.Name)
				metrics.RecordMatchMiss(tc.ClassName, tc.Name)
				continue
			}
			results[pos.ID] = leafResult(tc)
		}
	}

	for _, pos := range tree.Containers() {
		if _, exists := results[pos.ID]; exists {
			continue
		}
		status, found := aggregateDescendants(pos.ID, results)
		if !found {
			continue
		}
		results[pos.ID] = types.Result{Status: status}
	}

	return results
}

// leafResult computes the result for one matched test case.
func leafResult(tc junitxml.TestCase) types.Result {
	if tc.Failure == nil {
		return types.Result{Status: types.TestStatusPass}
	}
	r := types.Result{
		Status:       types.TestStatusFail,
		ShortMessage: tc.Failure.Message,
	}
	detail := types.ErrorDetail{
		Message: stripTypePrefix(tc.Failure.Message, tc.Failure.Type),
		Line:    lineFromStackTrace(tc.Failure.Contents, packageOf(tc.ClassName)),
	}
	r.Errors = append(r.Errors, detail)
	return r
}

// aggregateDescendants scans the already-resolved IDs for descendants of
// parentID. A container is failed iff any descendant failed.
func aggregateDescendants(parentID string, results types.ResultSet) (types.TestStatus, bool) {
	status := types.TestStatusPass
	found := false
	for id, r := range results {
		if !types.IsDescendantID(parentID, id) {
			continue
		}
		found = true
		if r.Status == types.TestStatusFail {
			status = types.TestStatusFail
		}
	}
	return status, found
}

// stripTypePrefix removes a leading "ExceptionType: " from the failure
// message, leaving the bare message text.
func stripTypePrefix(message, failureType string) string {
	if failureType == "" {
		return message
	}
	return strings.TrimPrefix(message, failureType+": ")
}

// packageOf derives the test's package from the report class name:
// everything before the last '.' after nested-class normalization.
func packageOf(className string) string {
	normalized := strings.ReplaceAll(className, "$", ".")
	idx := strings.LastIndex(normalized, ".")
	if idx < 0 {
		return ""
	}
	return normalized[:idx]
}

// lineFromStackTrace returns the 0-based line of the first stack frame
// whose fully qualified name contains pkg, or nil when none matches.
func lineFromStackTrace(stackTrace, pkg string) *int {
	if pkg == "" || stackTrace == "" {
		return nil
	}
	for _, frame := range stackFrameRe.FindAllStringSubmatch(stackTrace, -1) {
		if !strings.Contains(frame[1], pkg) {
			continue
		}
		n, err := strconv.Atoi(frame[3])
		if err != nil || n < 1 {
			return nil
		}
		line := n - 1
		return &line
	}
	return nil
}
