package renderer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const maxHeadingLevel = 6

// headingLevelTransformer pushes every heading down by shift levels.
type headingLevelTransformer struct {
	shift int
}

func (t headingLevelTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			h.Level = min(h.Level+t.shift, maxHeadingLevel)
		}
		return ast.WalkContinue, nil
	})
}

// linkTargetTransformer makes links open in a new window.
type linkTargetTransformer struct{}

func (linkTargetTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.Link, *ast.AutoLink:
			n.SetAttributeString("target", []byte("_blank"))
			n.SetAttributeString("rel", []byte("noopener noreferrer"))
		}
		return ast.WalkContinue, nil
	})
}

// headingIDs generates heading ids for a single conversion. It implements
// parser.IDs.
type headingIDs struct {
	ghCompatible bool
	prefix       string
	seen         map[string]struct{}
}

func newHeadingIDs(ghCompatible bool, prefix string) *headingIDs {
	return &headingIDs{
		ghCompatible: ghCompatible,
		prefix:       prefix,
		seen:         map[string]struct{}{},
	}
}

func (ids *headingIDs) Generate(value []byte, kind ast.NodeKind) []byte {
	id := ids.prefix + ids.slug(strings.TrimSpace(string(value)))
	if id == ids.prefix {
		if kind == ast.KindHeading {
			id += "heading"
		} else {
			id += "id"
		}
	}

	if _, ok := ids.seen[id]; !ok {
		ids.seen[id] = struct{}{}
		return []byte(id)
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", id, i)
		if _, ok := ids.seen[candidate]; !ok {
			ids.seen[candidate] = struct{}{}
			return []byte(candidate)
		}
	}
}

func (ids *headingIDs) Put(value []byte) {
	ids.seen[string(value)] = struct{}{}
}

// slug lowercases s and keeps letters, digits and underscores. In GitHub
// mode spaces and hyphens become hyphens; otherwise they are dropped too.
func (ids *headingIDs) slug(s string) string {
	out := make([]rune, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			out = append(out, unicode.ToLower(r))
		case ids.ghCompatible && (r == ' ' || r == '-'):
			out = append(out, '-')
		}
	}
	return string(out)
}
