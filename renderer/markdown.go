package renderer

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
	"go.abhg.dev/goldmark/frontmatter"
)

// Converter turns markdown into HTML using a goldmark instance configured
// from Options. A Converter is safe for concurrent use.
type Converter struct {
	md   goldmark.Markdown
	opts Options
}

// NewConverter builds a Converter for the given options.
func NewConverter(opts Options) *Converter {
	var exts []goldmark.Extender
	if opts.Tables {
		exts = append(exts, extension.Table)
	}
	if opts.Strikethrough {
		exts = append(exts, extension.Strikethrough)
	}
	if opts.Tasklists {
		exts = append(exts, extension.TaskList)
	}
	if opts.SimplifiedAutoLink {
		exts = append(exts, extension.Linkify)
	}
	if opts.Emoji {
		exts = append(exts, emoji.Emoji)
	}
	if opts.Metadata {
		exts = append(exts, &frontmatter.Extender{})
	}

	var parserOpts []parser.Option
	if !opts.NoHeaderID {
		parserOpts = append(parserOpts, parser.WithAutoHeadingID())
	}
	if opts.CustomizedHeaderID {
		parserOpts = append(parserOpts, parser.WithHeadingAttribute())
	}

	var transformers []util.PrioritizedValue
	if opts.HeaderLevelStart > 1 {
		transformers = append(transformers, util.Prioritized(headingLevelTransformer{shift: opts.HeaderLevelStart - 1}, 100))
	}
	if opts.OpenLinksInNewWindow {
		transformers = append(transformers, util.Prioritized(linkTargetTransformer{}, 100))
	}
	if len(transformers) > 0 {
		parserOpts = append(parserOpts, parser.WithASTTransformers(transformers...))
	}

	// Raw HTML is passed through.
	rendererOpts := []renderer.Option{html.WithUnsafe()}
	if opts.SimpleLineBreaks {
		rendererOpts = append(rendererOpts, html.WithHardWraps())
	}

	return &Converter{
		md: goldmark.New(
			goldmark.WithExtensions(exts...),
			goldmark.WithParserOptions(parserOpts...),
			goldmark.WithRendererOptions(rendererOpts...),
		),
		opts: opts,
	}
}

// Convert converts markdown content to HTML. The trailing newline goldmark
// emits after the last block is dropped.
func (c *Converter) Convert(markdown string) (string, error) {
	ids := newHeadingIDs(c.opts.GhCompatibleHeaderID, c.opts.PrefixHeaderID)
	ctx := parser.NewContext(parser.WithIDs(ids))

	var buf bytes.Buffer
	if err := c.md.Convert([]byte(markdown), &buf, parser.WithContext(ctx)); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
