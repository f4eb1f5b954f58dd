package splitter

import "unicode/utf8"

// SplitFixedChars implements the `fixed-chars` rule kind: it packs runes
// into ranges of up to max chars, preferring a whitespace-run boundary
// near the limit and falling back to the nearest rune boundary, per
// spec §4.4's boundary-preference order.
func SplitFixedChars(content []byte, min, max int) []Range {
	var out []Range
	start := 0
	n := len(content)

	for start < n {
		end := advanceRunes(content, start, max)
		if end >= n {
			out = append(out, Range{Start: uint64(start), End: uint64(n)})
			break
		}

		if ws := findWhitespaceBoundary(content, start, end); ws > start {
			end = ws
		} else {
			end = backToRuneBoundary(content, end)
		}
		if end <= start {
			end = advanceOneRune(content, start)
		}

		out = append(out, Range{Start: uint64(start), End: uint64(end)})
		start = end
	}

	return trimTrailingShortRange(content, out, min)
}

// advanceRunes returns the byte offset reached after consuming up to
// count runes starting at start, capped at len(b).
func advanceRunes(b []byte, start, count int) int {
	i := start
	for c := 0; c < count && i < len(b); c++ {
		_, size := utf8.DecodeRune(b[i:])
		i += size
	}
	return i
}

func advanceOneRune(b []byte, start int) int {
	if start >= len(b) {
		return start
	}
	_, size := utf8.DecodeRune(b[start:])
	return start + size
}

// trimTrailingShortRange merges a too-short trailing range into its
// predecessor, since a final range under min is only permitted when it
// is the file's sole range.
func trimTrailingShortRange(content []byte, ranges []Range, min int) []Range {
	if len(ranges) < 2 {
		return ranges
	}
	last := ranges[len(ranges)-1]
	if runeLen(content[last.Start:last.End]) < min {
		ranges[len(ranges)-2].End = last.End
		return ranges[:len(ranges)-1]
	}
	return ranges
}
