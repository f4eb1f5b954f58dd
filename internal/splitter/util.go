package splitter

import (
	"path/filepath"
	"unicode/utf8"
)

func globMatch(pattern, name string) (bool, error) {
	return filepath.Match(pattern, filepath.Base(name))
}

// backToRuneBoundary walks i backward until it lands on a UTF-8 rune
// boundary within b, per spec §4.4 ("splitting mid-code-point is
// forbidden").
func backToRuneBoundary(b []byte, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(b) {
		return len(b)
	}
	for i > 0 && !utf8.RuneStart(b[i]) {
		i--
	}
	return i
}

// runeLen returns the number of decoded UTF-8 code points in b.
func runeLen(b []byte) int {
	return utf8.RuneCount(b)
}

// findWhitespaceBoundary looks backward from limit (exclusive) for the end
// of the nearest run of whitespace, returning an offset in (lowerBound,
// limit]. Returns -1 if none found.
func findWhitespaceBoundary(b []byte, lowerBound, limit int) int {
	i := limit
	for i > lowerBound {
		r, size := utf8.DecodeLastRune(b[lowerBound:i])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		if isSpace(r) {
			return i
		}
		i -= size
	}
	return -1
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// unit is an atomic, rule-specific span (a paragraph, sentence or
// top-level code declaration) that packUnits may coalesce or further
// subdivide to respect the min/max char budget.
type unit struct {
	start, end int
}

// packUnits greedily coalesces consecutive units into chunks so each
// chunk's decoded length is within [min, max] where possible; a unit
// itself longer than max is hard-split with splitOversized. A chunk
// shorter than min is merged forward unless it is the file's final
// chunk, per spec §4.4 ("unless it is the final range of the file").
func packUnits(content []byte, units []unit, min, max int, splitOversized func([]byte, int, int) []Range) []Range {
	var out []Range
	i := 0
	for i < len(units) {
		start := units[i].start
		end := units[i].end

		for i+1 < len(units) {
			next := units[i+1]
			if runeLen(content[start:next.end]) > max {
				break
			}
			end = next.end
			i++
		}

		if runeLen(content[start:end]) > max {
			out = append(out, splitOversized(content[start:end], min, max)...)
			i++
			continue
		}

		// Merge forward into the next unit(s) if below min and more
		// units remain; the final chunk of the file is exempt.
		for runeLen(content[start:end]) < min && i+1 < len(units) {
			i++
			end = units[i].end
		}

		out = append(out, Range{Start: uint64(start), End: uint64(end)})
		i++
	}
	return out
}
