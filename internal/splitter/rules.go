// Package splitter implements the file-aware corpus splitter described in
// spec §4.4 (C4): given a file path and content, it produces a stream of
// non-overlapping byte ranges governed by a rule table, honoring
// `.gitignore`-style ignore files and attaching rule-driven tags to each
// emitted chunk.
package splitter

// Kind is one of the four split strategies named in spec §4.4.
type Kind string

const (
	KindFixedChars Kind = "fixed-chars"
	KindParagraph  Kind = "paragraph"
	KindSentence   Kind = "sentence"
	KindCodeBlock  Kind = "code-block"
)

// Rule is one entry of the split rule table: `(extension-or-glob, kind, params)`.
// The first matching rule in a Table governs a given path.
type Rule struct {
	// Pattern is either a bare extension ("*.go", ".go") or a glob
	// matched against the file's base name.
	Pattern  string `yaml:"pattern"`
	Kind     Kind   `yaml:"kind"`
	MinChars int    `yaml:"min_chars"`
	MaxChars int    `yaml:"max_chars"`
	// Tags are attached to every chunk this rule produces.
	Tags []string `yaml:"tags"`
	// Language is required for KindCodeBlock; it names the tree-sitter
	// grammar to parse with (e.g. "go", "python", "rust").
	Language string `yaml:"language,omitempty"`
}

// Table is an ordered list of rules; the first whose Pattern matches a
// path governs that file.
type Table []Rule

// DefaultTable returns the rule table spec §4.4's examples imply:
// code-block for common source extensions, paragraph for prose, and a
// fixed-chars fallback for everything else.
func DefaultTable() Table {
	return Table{
		{Pattern: "*.go", Kind: KindCodeBlock, Language: "go", MinChars: 200, MaxChars: 2000, Tags: []string{"code"}},
		{Pattern: "*.py", Kind: KindCodeBlock, Language: "python", MinChars: 200, MaxChars: 2000, Tags: []string{"code"}},
		{Pattern: "*.ts", Kind: KindCodeBlock, Language: "typescript", MinChars: 200, MaxChars: 2000, Tags: []string{"code"}},
		{Pattern: "*.js", Kind: KindCodeBlock, Language: "javascript", MinChars: 200, MaxChars: 2000, Tags: []string{"code"}},
		{Pattern: "*.rs", Kind: KindFixedChars, MinChars: 200, MaxChars: 2000, Tags: []string{"code"}},
		{Pattern: "*.c", Kind: KindFixedChars, MinChars: 200, MaxChars: 2000, Tags: []string{"code"}},
		{Pattern: "*.md", Kind: KindParagraph, MinChars: 50, MaxChars: 1500, Tags: []string{"prose"}},
		{Pattern: "*.txt", Kind: KindParagraph, MinChars: 50, MaxChars: 1500, Tags: []string{"prose"}},
		{Pattern: "*", Kind: KindSentence, MinChars: 50, MaxChars: 1000, Tags: []string{"prose"}},
	}
}

// Match returns the first rule in t whose Pattern matches name, and true.
// If none match, returns the zero Rule and false.
func (t Table) Match(name string) (Rule, bool) {
	for _, r := range t {
		if patternMatches(r.Pattern, name) {
			return r, true
		}
	}
	return Rule{}, false
}
