package splitter

import (
	"context"
	"sort"

	"github.com/dewey-index/dewey/internal/chunk"
)

// SplitCodeBlock implements the `code-block` rule kind: each top-level
// declaration (function, type, const/var block) parsed by tree-sitter
// becomes a unit, so the rule-specific separator named in spec §4.4
// ("closing brace") falls naturally out of the grammar's node
// boundaries. Gaps between declarations (package clause, comments,
// blank lines) are folded into the following unit so the first unit of
// a file also carries its leading context.
func SplitCodeBlock(parser *chunk.Parser, content []byte, min, max int, language string) ([]Range, error) {
	tree, err := parser.Parse(context.Background(), content, language)
	if err != nil {
		return SplitFixedChars(content, min, max), nil
	}

	units := topLevelUnits(tree.Root, len(content))
	if len(units) == 0 {
		return SplitFixedChars(content, min, max), nil
	}

	ranges := packUnits(content, units, min, max, SplitFixedChars)
	attachSymbolTags(ranges, tree, content)
	return ranges, nil
}

// attachSymbolTags tags each range with the name of every symbol
// (function, type, method, ..., at any nesting depth) tree-sitter found
// starting inside it, so a query can filter or be scored toward a specific
// declaration by name.
func attachSymbolTags(ranges []Range, tree *chunk.Tree, content []byte) {
	symbols := chunk.NewSymbolExtractor().Extract(tree, content)
	if len(symbols) == 0 {
		return
	}

	starts := lineStarts(content)
	for i := range ranges {
		startLine := lineAt(starts, int(ranges[i].Start))
		endLine := lineAt(starts, int(ranges[i].End))

		seen := make(map[string]bool)
		var tags []string
		for _, sym := range symbols {
			if sym.Name == "" || sym.StartLine < startLine || sym.StartLine > endLine {
				continue
			}
			tag := "sym:" + sym.Name
			if seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
		}
		if len(tags) > 0 {
			sort.Strings(tags)
			ranges[i].Tags = tags
		}
	}
}

// lineStarts returns the byte offset of the start of each line in
// content; lineStarts[0] is always 0 (the start of line 1).
func lineStarts(content []byte) []int {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineAt returns the 1-indexed line number containing byte offset pos.
func lineAt(starts []int, pos int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > pos })
}

// topLevelUnits returns one unit per direct child of root, with each
// unit's start pulled back to cover the gap since the previous unit's
// end (so leading comments/imports travel with the declaration they
// precede rather than forming their own sub-min fragment).
func topLevelUnits(root *chunk.Node, contentLen int) []unit {
	if root == nil || len(root.Children) == 0 {
		return nil
	}

	var units []unit
	prevEnd := 0
	for _, child := range root.Children {
		start := int(child.StartByte)
		end := int(child.EndByte)
		if end <= start {
			continue
		}
		if prevEnd < start {
			start = prevEnd
		}
		units = append(units, unit{start: start, end: end})
		prevEnd = end
	}

	if prevEnd < contentLen && len(units) > 0 {
		units[len(units)-1].end = contentLen
	}

	return units
}
