package dataset

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/bull/contextual-rag/internal/storage"
)

// documentNamespace seeds the UUIDv5 original_uuid of markdown documents.
var documentNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8e-9c55-2a4f0d6b9e17")

// Section is a span of a markdown document delimited by H1/H2 headings.
type Section struct {
	HeaderPath string // "# Doc Title > ## Section Name"
	Body       string // Text under the heading, heading line excluded
}

// Content is the section text with its header path prepended.
func (s Section) Content() string {
	switch {
	case s.HeaderPath == "":
		return s.Body
	case s.Body == "":
		return s.HeaderPath
	default:
		return s.HeaderPath + "\n\n" + s.Body
	}
}

// Splitter splits markdown at H1 and H2 boundaries.
type Splitter struct {
	md goldmark.Markdown
}

// NewSplitter creates a splitter with auto heading IDs enabled, which the
// TOC walk needs to locate headings.
func NewSplitter() *Splitter {
	return &Splitter{
		md: goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID())),
	}
}

type heading struct {
	path []string
	node *ast.Heading
}

// Split returns the sections of source in document order. Text before the
// first heading becomes a section with an empty header path. A document
// without H1/H2 headings is a single section; an empty one has none.
func (s *Splitter) Split(source []byte) ([]Section, error) {
	doc := s.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source, toc.MinDepth(1), toc.MaxDepth(2), toc.Compact(true))
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	nodes := headingsByID(doc)
	var headings []heading
	flatten(tree.Items, nil, nodes, &headings)

	if len(headings) == 0 {
		body := strings.TrimSpace(string(source))
		if body == "" {
			return nil, nil
		}
		return []Section{{Body: body}}, nil
	}

	var sections []Section
	if pre := strings.TrimSpace(string(source[:lineStart(source, headings[0].node)])); pre != "" {
		sections = append(sections, Section{Body: pre})
	}

	for i, h := range headings {
		end := len(source)
		if i+1 < len(headings) {
			end = lineStart(source, headings[i+1].node)
		}
		start := min(headingEnd(source, h.node), end)
		sections = append(sections, Section{
			HeaderPath: formatHeaderPath(h.path),
			Body:       strings.TrimSpace(string(source[start:end])),
		})
	}
	return sections, nil
}

// flatten walks TOC items depth first, which is document order.
func flatten(items toc.Items, ancestors []string, nodes map[string]*ast.Heading, out *[]heading) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))
		if n, ok := nodes[string(item.ID)]; ok && n.Lines().Len() > 0 {
			*out = append(*out, heading{path: path, node: n})
		}
		flatten(item.Items, path, nodes, out)
	}
}

func headingsByID(doc ast.Node) map[string]*ast.Heading {
	nodes := make(map[string]*ast.Heading)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		h := n.(*ast.Heading)
		if id, ok := h.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				nodes[string(b)] = h
			}
		}
		return ast.WalkContinue, nil
	})
	return nodes
}

// formatHeaderPath renders ["Install", "Steps"] as "# Install > ## Steps".
func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = strings.Repeat("#", i+1) + " " + segment
	}
	return strings.Join(parts, " > ")
}

// lineStart is the offset of the first byte of the heading's line.
func lineStart(source []byte, h *ast.Heading) int {
	pos := h.Lines().At(0).Start
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// headingEnd is the offset just past the heading, including a setext
// underline when present.
func headingEnd(source []byte, h *ast.Heading) int {
	end := nextLine(source, h.Lines().At(h.Lines().Len()-1).Stop)
	next := nextLine(source, end)
	if underline := bytes.TrimSpace(source[end:next]); len(underline) > 0 &&
		(bytes.Count(underline, []byte("=")) == len(underline) || bytes.Count(underline, []byte("-")) == len(underline)) {
		return next
	}
	return end
}

func nextLine(source []byte, pos int) int {
	if i := bytes.IndexByte(source[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(source)
}

// LoadMarkdownDir loads every *.md file under dir, in lexical path order, as
// a Document split at H1/H2 boundaries. doc_id is the slash-separated path
// relative to dir. Files without content are skipped. When limit > 0 only the
// first limit documents are returned.
func LoadMarkdownDir(dir string, limit int) ([]storage.Document, error) {
	splitter := NewSplitter()

	var docs []storage.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		if limit > 0 && len(docs) >= limit {
			return filepath.SkipAll
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		doc, err := splitter.Document(filepath.ToSlash(rel), source)
		if err != nil {
			return fmt.Errorf("split %s: %w", rel, err)
		}
		if len(doc.Chunks) > 0 {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load markdown dataset: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no markdown under %s", ErrNoDocuments, dir)
	}
	return docs, nil
}

// Document builds a Document for one markdown source.
func (s *Splitter) Document(docID string, source []byte) (storage.Document, error) {
	sections, err := s.Split(source)
	if err != nil {
		return storage.Document{}, err
	}

	doc := storage.Document{
		DocID:        docID,
		OriginalUUID: uuid.NewSHA1(documentNamespace, []byte(docID)).String(),
		Content:      string(source),
		Chunks:       make([]storage.Chunk, len(sections)),
	}
	for i, sec := range sections {
		doc.Chunks[i] = storage.Chunk{
			ChunkID:       fmt.Sprintf("%s_chunk_%d", docID, i),
			OriginalIndex: i,
			Content:       sec.Content(),
		}
	}
	return doc, nil
}
