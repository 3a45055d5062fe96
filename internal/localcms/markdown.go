package localcms

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spacetraveling/internal/richtext"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var markdownEngine = goldmark.New(goldmark.WithExtensions(extension.GFM))

// frontMatter is the YAML header of a post file.
type frontMatter struct {
	ID                   string `yaml:"id"`
	UID                  string `yaml:"uid"`
	Type                 string `yaml:"type"`
	Title                string `yaml:"title"`
	Subtitle             string `yaml:"subtitle"`
	Author               string `yaml:"author"`
	Banner               string `yaml:"banner"`
	BannerAlt            string `yaml:"banner_alt"`
	FirstPublicationDate string `yaml:"first_publication_date"`
	LastPublicationDate  string `yaml:"last_publication_date"`
	Draft                bool   `yaml:"draft"`
}

type contentGroup struct {
	Heading string           `json:"heading"`
	Body    []richtext.Block `json:"body"`
}

type bannerField struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type postData struct {
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle"`
	Author   string         `json:"author"`
	Banner   bannerField    `json:"banner"`
	Content  []contentGroup `json:"content"`
}

var fmDelimiter = []byte("---")

// splitFrontMatter separates the YAML header from the Markdown body.
func splitFrontMatter(src []byte) (frontMatter, []byte, error) {
	var fm frontMatter
	trimmed := bytes.TrimPrefix(src, []byte("\ufeff"))
	if !bytes.HasPrefix(trimmed, fmDelimiter) {
		return fm, src, nil
	}
	rest := trimmed[len(fmDelimiter):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return fm, nil, fmt.Errorf("unterminated front matter")
	}
	header := rest[:end]
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, nil, fmt.Errorf("parse front matter: %w", err)
	}
	return fm, body, nil
}

// convertMarkdown turns a Markdown body into content groups. Every level-two
// heading starts a group; text before the first one lands in a group with an
// empty heading. A level-one heading is returned as the title.
func convertMarkdown(src []byte) (string, []contentGroup) {
	root := markdownEngine.Parser().Parse(text.NewReader(src))

	var (
		title  string
		groups []contentGroup
	)
	current := func() *contentGroup {
		if len(groups) == 0 {
			groups = append(groups, contentGroup{})
		}
		return &groups[len(groups)-1]
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			txt, spans := inlineText(node, src)
			switch node.Level {
			case 1:
				if title == "" {
					title = txt
					continue
				}
				current().Body = append(current().Body, richtext.Block{Type: richtext.TypeHeading1, Text: txt, Spans: spans})
			case 2:
				groups = append(groups, contentGroup{Heading: txt})
			default:
				current().Body = append(current().Body, richtext.Block{Type: fmt.Sprintf("heading%d", node.Level), Text: txt, Spans: spans})
			}
		default:
			current().Body = append(current().Body, blockNodes(n, src)...)
		}
	}
	if groups == nil {
		groups = []contentGroup{}
	}
	for i := range groups {
		if groups[i].Body == nil {
			groups[i].Body = []richtext.Block{}
		}
	}
	return title, groups
}

func blockNodes(n ast.Node, src []byte) []richtext.Block {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		if img, ok := soleImage(node); ok {
			alt, _ := inlineText(img, src)
			return []richtext.Block{{Type: richtext.TypeImage, URL: string(img.Destination), Alt: alt}}
		}
		txt, spans := inlineText(node, src)
		if strings.TrimSpace(txt) == "" {
			return nil
		}
		return []richtext.Block{{Type: richtext.TypeParagraph, Text: txt, Spans: spans}}
	case *ast.List:
		itemType := richtext.TypeListItem
		if node.IsOrdered() {
			itemType = richtext.TypeOListItem
		}
		var out []richtext.Block
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			var parts []string
			var spans []richtext.Span
			offset := 0
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if _, nested := c.(*ast.List); nested {
					continue
				}
				txt, sp := inlineText(c, src)
				if txt == "" {
					continue
				}
				if len(parts) > 0 {
					offset++
				}
				for _, s := range sp {
					s.Start += offset
					s.End += offset
					spans = append(spans, s)
				}
				parts = append(parts, txt)
				offset += utf8.RuneCountInString(txt)
			}
			out = append(out, richtext.Block{Type: itemType, Text: strings.Join(parts, " "), Spans: spans})
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if nested, ok := c.(*ast.List); ok {
					out = append(out, blockNodes(nested, src)...)
				}
			}
		}
		return out
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var b strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		return []richtext.Block{{Type: richtext.TypePreformat, Text: strings.TrimRight(b.String(), "\n")}}
	case *ast.Blockquote:
		var out []richtext.Block
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, blockNodes(c, src)...)
		}
		return out
	case *ast.Heading:
		txt, spans := inlineText(node, src)
		return []richtext.Block{{Type: fmt.Sprintf("heading%d", node.Level), Text: txt, Spans: spans}}
	default:
		return nil
	}
}

func soleImage(n ast.Node) (*ast.Image, bool) {
	if n.ChildCount() != 1 {
		return nil, false
	}
	img, ok := n.FirstChild().(*ast.Image)
	return img, ok
}

type spanBuilder struct {
	text  strings.Builder
	runes int
	spans []richtext.Span
}

func (b *spanBuilder) write(s string) {
	b.text.WriteString(s)
	b.runes += utf8.RuneCountInString(s)
}

func inlineText(n ast.Node, src []byte) (string, []richtext.Span) {
	var b spanBuilder
	walkInline(n, src, &b)
	return b.text.String(), b.spans
}

func walkInline(parent ast.Node, src []byte, b *spanBuilder) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Text:
			b.write(string(node.Segment.Value(src)))
			switch {
			case node.HardLineBreak():
				b.write("\n")
			case node.SoftLineBreak():
				b.write(" ")
			}
		case *ast.String:
			b.write(string(node.Value))
		case *ast.Emphasis:
			start := b.runes
			walkInline(node, src, b)
			spanType := richtext.SpanEm
			if node.Level >= 2 {
				spanType = richtext.SpanStrong
			}
			b.addSpan(start, spanType, nil)
		case *ast.Link:
			start := b.runes
			walkInline(node, src, b)
			b.addSpan(start, richtext.SpanHyperlink, &richtext.SpanData{LinkType: "Web", URL: string(node.Destination)})
		case *ast.AutoLink:
			start := b.runes
			b.write(string(node.Label(src)))
			b.addSpan(start, richtext.SpanHyperlink, &richtext.SpanData{LinkType: "Web", URL: string(node.URL(src))})
		case *ast.RawHTML:
			// dropped
		default:
			walkInline(node, src, b)
		}
	}
}

func (b *spanBuilder) addSpan(start int, spanType string, data *richtext.SpanData) {
	if b.runes <= start {
		return
	}
	b.spans = append(b.spans, richtext.Span{Start: start, End: b.runes, Type: spanType, Data: data})
}
