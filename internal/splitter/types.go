package splitter

// Range is a half-open byte range [Start, End) into a file's content.
// Tags carries range-specific tags beyond the rule's own (e.g. the
// symbol names a code-block range covers); most splitters leave it nil
// and rely on the rule's tags alone.
type Range struct {
	Start uint64
	End   uint64
	Tags  []string
}

// Chunk is one emitted chunk: a byte range plus the tags its governing
// rule attaches.
type Chunk struct {
	Start uint64
	End   uint64
	Tags  []string
}

func patternMatches(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if len(pattern) > 0 && pattern[0] == '.' {
		pattern = "*" + pattern
	}
	ok, err := globMatch(pattern, name)
	return err == nil && ok
}
