// Package results correlates JUnit XML report entries with positions in an
// externally supplied test tree and aggregates outcomes bottom-up.
package results

import (
	"regexp"
	"strings"

	"github.com/editorkit/testbridge/junitxml"
	"github.com/editorkit/testbridge/types"
)

// paramSuffixRe matches a trailing "(...)" parameter block on a test name,
// e.g. JUnit5 parameterized invocations like "divides(3, 12)".
var paramSuffixRe = regexp.MustCompile(`\(.*\)$`)

// StripParams removes a trailing parameter suffix from a test name.
// Distinct parameterized invocations of one method therefore collapse onto
// a single tree position. That mirrors the report naming convention and is
// a known limitation, not something to paper over here.
func StripParams(testName string) string {
	return strings.TrimSpace(paramSuffixRe.ReplaceAllString(testName, ""))
}

// CandidateIDs builds the ordered identifier forms tried against position
// IDs, most specific first:
//
//  1. className.testName as reported (JUnit4-style id)
//  2. className with every '$' replaced by '.', then testName
//     (nested-class mangling normalized)
//
// The parameter suffix is stripped before building either form.
func CandidateIDs(className, testName string) []string {
	name := StripParams(testName)
	raw := className + "." + name
	candidates := []string{raw}
	if strings.Contains(className, "$") {
		normalized := strings.ReplaceAll(className, "$", ".") + "." + name
		if normalized != raw {
			candidates = append(candidates, normalized)
		}
	}
	return candidates
}

// Match resolves a report test case to a position in the tree, or reports
// no match. Candidates are tried in priority order, and for each candidate
// the tree's test positions are scanned in input order; the first exact ID
// hit wins. Candidate priority outranks position order, so an exact
// JUnit4-style id beats a nested-class-normalized one even when both could
// match different positions.
func Match(tree *types.PositionTree, tc junitxml.TestCase) (types.Position, bool) {
	tests := tree.Tests()
	for _, candidate := range CandidateIDs(tc.ClassName, tc.Name) {
		for _, pos := range tests {
			if pos.ID == candidate {
				return pos, true
			}
		}
	}
	return types.Position{}, false
}
