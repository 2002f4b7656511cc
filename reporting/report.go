// Package reporting renders a position/result mapping for human
// consumption: a hierarchical tree plus a summary table.
package reporting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/editorkit/testbridge/types"
)

// Tree hierarchy symbols using box drawing characters
const (
	TreeBranch     = "├── "
	TreeLastBranch = "└── "
	TreeContinue   = "│   "
	TreeIndent     = "    "
)

func statusString(r types.Result, ok bool) string {
	if !ok {
		return "no data"
	}
	switch r.Status {
	case types.TestStatusPass:
		return "pass"
	case types.TestStatusFail:
		return "fail"
	}
	return string(r.Status)
}

// RenderTree prints the position tree with per-node outcomes. Files come
// first, then their namespaces, then tests grouped under the namespace
// whose ID is their longest prefix.
func RenderTree(tree *types.PositionTree, results types.ResultSet) string {
	var b strings.Builder

	files := filesOf(tree)
	for fi, file := range files {
		fileLast := fi == len(files)-1
		writeNode(&b, "", fileLast, file, results)

		namespaces := namespacesOf(tree, file)
		childPrefix := TreeContinue
		if fileLast {
			childPrefix = TreeIndent
		}
		for ni, ns := range namespaces {
			nsLast := ni == len(namespaces)-1
			writeNode(&b, childPrefix, nsLast, ns, results)

			testPrefix := childPrefix + TreeContinue
			if nsLast {
				testPrefix = childPrefix + TreeIndent
			}
			tests := testsOf(tree, ns)
			for ti, tst := range tests {
				writeNode(&b, testPrefix, ti == len(tests)-1, tst, results)
			}
		}
	}
	return b.String()
}

func writeNode(b *strings.Builder, prefix string, last bool, pos types.Position, results types.ResultSet) {
	connector := TreeBranch
	if last {
		connector = TreeLastBranch
	}
	if prefix == "" {
		connector = ""
	}
	r, ok := results[pos.ID]
	line := fmt.Sprintf("%s%s%s [%s]", prefix, connector, pos.ID, statusString(r, ok))
	if ok && r.Status == types.TestStatusFail && r.ShortMessage != "" {
		line += " " + r.ShortMessage
	}
	b.WriteString(line + "\n")
}

func filesOf(tree *types.PositionTree) []types.Position {
	var out []types.Position
	for _, p := range tree.Positions {
		if p.Type == types.PositionTypeFile {
			out = append(out, p)
		}
	}
	return out
}

func namespacesOf(tree *types.PositionTree, file types.Position) []types.Position {
	var out []types.Position
	for _, p := range tree.Positions {
		if p.Type == types.PositionTypeNamespace && p.Path == file.Path {
			out = append(out, p)
		}
	}
	return out
}

// testsOf returns tests whose ID descends from the namespace, skipping
// those owned by a more specific (nested) namespace.
func testsOf(tree *types.PositionTree, ns types.Position) []types.Position {
	var out []types.Position
	for _, p := range tree.Positions {
		if p.Type != types.PositionTypeTest || !types.IsDescendantID(ns.ID, p.ID) {
			continue
		}
		if owner := owningNamespace(tree, p); owner == ns.ID {
			out = append(out, p)
		}
	}
	return out
}

func owningNamespace(tree *types.PositionTree, test types.Position) string {
	owner := ""
	for _, p := range tree.Positions {
		if p.Type != types.PositionTypeNamespace || !types.IsDescendantID(p.ID, test.ID) {
			continue
		}
		if len(p.ID) > len(owner) {
			owner = p.ID
		}
	}
	return owner
}

// RenderSummaryTable renders one row per test position plus a totals
// footer, colored by overall outcome.
func RenderSummaryTable(tree *types.PositionTree, results types.ResultSet, title string) string {
	t := table.NewWriter()
	if title != "" {
		t.SetTitle(title)
	}

	t.AppendHeader(table.Row{"Type", "ID", "Status", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Message", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	tests := tree.Tests()
	sort.SliceStable(tests, func(i, j int) bool { return tests[i].ID < tests[j].ID })
	for _, pos := range tests {
		r, ok := results[pos.ID]
		msg := ""
		if ok {
			msg = r.ShortMessage
		}
		t.AppendRow(table.Row{"Test", pos.ID, statusString(r, ok), msg})
	}

	stats := types.CollectStats(tree, results)
	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d tests", stats.Total),
		fmt.Sprintf("%d passed / %d failed / %d no data", stats.Passed, stats.Failed, stats.NoData),
		"",
	})

	if stats.Failed > 0 || stats.NoData > 0 {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}
	// The footer carries counts; keep them as written, not upper-cased.
	t.Style().Format.Footer = text.FormatDefault
	return t.Render()
}
