package splitter

import (
	"os"
	"path/filepath"

	"github.com/dewey-index/dewey/internal/chunk"
	"github.com/dewey-index/dewey/internal/gitignore"
)

// Splitter turns file content into chunk boundaries per the rule table,
// honoring `.gitignore`-style ignore files discovered under root.
type Splitter struct {
	root   string
	table  Table
	ignore *gitignore.Matcher
	parser *chunk.Parser
}

// New builds a Splitter rooted at root, using table to govern chunking.
// Ignore files named ".gitignore" found from root downward are loaded
// eagerly, per spec §4.4.
func New(root string, table Table) (*Splitter, error) {
	s := &Splitter{
		root:   root,
		table:  table,
		ignore: gitignore.New(),
		parser: chunk.NewParser(),
	}
	if err := s.loadIgnoreFiles(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Splitter) loadIgnoreFiles() error {
	return filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || d.Name() != ".gitignore" {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, filepath.Dir(path))
		if relErr != nil {
			return nil
		}
		base := filepath.ToSlash(rel)
		if base == "." {
			base = ""
		}
		return s.ignore.AddFromFile(path, base)
	})
}

// Close releases the splitter's tree-sitter parser.
func (s *Splitter) Close() {
	s.parser.Close()
}

// IsIgnored reports whether relPath (relative to root) is excluded by an
// encountered ignore file.
func (s *Splitter) IsIgnored(relPath string) bool {
	return s.ignore.Match(filepath.ToSlash(relPath), false)
}

// Split produces the chunk stream for relPath's content, using the first
// matching rule in the table. An ignored path always yields no chunks.
func (s *Splitter) Split(relPath string, content []byte) ([]Chunk, error) {
	if s.IsIgnored(relPath) {
		return nil, nil
	}

	rule, ok := s.table.Match(filepath.Base(relPath))
	if !ok {
		return nil, nil
	}

	ranges, err := s.splitByRule(rule, content)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(ranges))
	for _, r := range ranges {
		tags := rule.Tags
		if len(r.Tags) > 0 {
			tags = append(append([]string{}, rule.Tags...), r.Tags...)
		}
		chunks = append(chunks, Chunk{Start: r.Start, End: r.End, Tags: tags})
	}
	return chunks, nil
}

func (s *Splitter) splitByRule(rule Rule, content []byte) ([]Range, error) {
	switch rule.Kind {
	case KindFixedChars:
		return SplitFixedChars(content, rule.MinChars, rule.MaxChars), nil
	case KindParagraph:
		return SplitParagraph(content, rule.MinChars, rule.MaxChars), nil
	case KindSentence:
		return SplitSentence(content, rule.MinChars, rule.MaxChars), nil
	case KindCodeBlock:
		return SplitCodeBlock(s.parser, content, rule.MinChars, rule.MaxChars, rule.Language)
	default:
		return nil, unsupportedKindError(rule.Kind)
	}
}

func unsupportedKindError(k Kind) error {
	return &unsupportedKind{kind: string(k)}
}

type unsupportedKind struct{ kind string }

func (e *unsupportedKind) Error() string {
	return "splitter: unsupported rule kind " + e.kind
}

// TagsFor returns the tags the rule table would attach to name, without
// splitting.
func (s *Splitter) TagsFor(name string) []string {
	rule, ok := s.table.Match(filepath.Base(name))
	if !ok {
		return nil
	}
	return rule.Tags
}
