package splitter

import "regexp"

var blankLineRe = regexp.MustCompile(`\r?\n[ \t]*\r?\n[ \t\r\n]*`)

// SplitParagraph implements the `paragraph` rule kind: paragraphs are
// separated by one or more blank lines. A paragraph exceeding max is
// hard-split with SplitFixedChars; an undersized paragraph is merged
// into its successor per packUnits, unless it is the file's last.
func SplitParagraph(content []byte, min, max int) []Range {
	units := paragraphUnits(content)
	if len(units) == 0 {
		return nil
	}
	return packUnits(content, units, min, max, SplitFixedChars)
}

func paragraphUnits(content []byte) []unit {
	var units []unit
	start := 0
	for _, loc := range blankLineRe.FindAllIndex(content, -1) {
		sepStart, sepEnd := loc[0], loc[1]
		if trimmed := trimRange(content, start, sepStart); trimmed.end > trimmed.start {
			units = append(units, trimmed)
		}
		start = sepEnd
	}
	if trimmed := trimRange(content, start, len(content)); trimmed.end > trimmed.start {
		units = append(units, trimmed)
	}
	return units
}

// trimRange trims leading/trailing ASCII whitespace from content[s:e]
// without crossing a rune boundary.
func trimRange(content []byte, s, e int) unit {
	for s < e && isSpace(rune(content[s])) {
		s++
	}
	for e > s && isSpace(rune(content[e-1])) {
		e--
	}
	return unit{start: s, end: e}
}
