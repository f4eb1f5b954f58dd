package splitter

import (
	"bytes"
	"strings"

	"github.com/blevesearch/segment"
)

// SplitSentence implements the `sentence` rule kind. It walks the content
// with a UAX#29 word segmenter (so a cut never lands inside a word or a
// multi-byte grapheme) and treats a sentence-terminator token (one ending
// in '.', '!' or '?') followed by whitespace as a sentence boundary.
func SplitSentence(content []byte, min, max int) []Range {
	units := sentenceUnits(content)
	if len(units) == 0 {
		return nil
	}
	return packUnits(content, units, min, max, SplitFixedChars)
}

func sentenceUnits(content []byte) []unit {
	seg := segment.NewWordSegmenter(bytes.NewReader(content))

	var units []unit
	sentenceStart := 0
	offset := 0
	pendingTerminator := false

	for seg.Segment() {
		tok := seg.Bytes()
		tokStart := offset
		offset += len(tok)

		isWhitespace := strings.TrimSpace(string(tok)) == ""

		if pendingTerminator && isWhitespace {
			units = append(units, unit{start: sentenceStart, end: tokStart})
			sentenceStart = offset
			pendingTerminator = false
			continue
		}

		if !isWhitespace {
			pendingTerminator = endsWithTerminator(tok)
		}
	}

	if sentenceStart < len(content) {
		units = append(units, unit{start: sentenceStart, end: len(content)})
	}

	return units
}

func endsWithTerminator(tok []byte) bool {
	if len(tok) == 0 {
		return false
	}
	switch tok[len(tok)-1] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}
