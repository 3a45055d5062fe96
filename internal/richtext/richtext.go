// Package richtext converts Prismic structured text into HTML and plain text.
package richtext

import (
	"html"
	"sort"
	"strings"
	"unicode/utf8"
)

// Block types.
const (
	TypeHeading1    = "heading1"
	TypeHeading2    = "heading2"
	TypeHeading3    = "heading3"
	TypeHeading4    = "heading4"
	TypeHeading5    = "heading5"
	TypeHeading6    = "heading6"
	TypeParagraph   = "paragraph"
	TypePreformat   = "preformatted"
	TypeListItem    = "list-item"
	TypeOListItem   = "o-list-item"
	TypeImage       = "image"
	TypeEmbed       = "embed"
	SpanStrong      = "strong"
	SpanEm          = "em"
	SpanHyperlink   = "hyperlink"
	SpanLabel       = "label"
	linkTargetBlank = "_blank"
)

// Block is one element of a rich text field.
type Block struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Spans  []Span `json:"spans,omitempty"`
	URL    string `json:"url,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Oembed *Embed `json:"oembed,omitempty"`
}

// Span marks up Text[Start:End], counted in runes.
type Span struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Type  string    `json:"type"`
	Data  *SpanData `json:"data,omitempty"`
}

// SpanData carries hyperlink and label details.
type SpanData struct {
	LinkType string `json:"link_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Embed is an oEmbed payload.
type Embed struct {
	EmbedURL string `json:"embed_url"`
	HTML     string `json:"html"`
}

// AsText joins the text of every block with sep.
func AsText(blocks []Block, sep string) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, sep)
}

// AsHTML serializes blocks to HTML. Consecutive list items share one list element.
// The output is not sanitized.
func AsHTML(blocks []Block) string {
	var b strings.Builder
	openList := ""

	closeList := func() {
		if openList != "" {
			b.WriteString("</" + openList + ">")
			openList = ""
		}
	}

	for _, block := range blocks {
		listTag := ""
		switch block.Type {
		case TypeListItem:
			listTag = "ul"
		case TypeOListItem:
			listTag = "ol"
		}
		if listTag != openList {
			closeList()
			if listTag != "" {
				b.WriteString("<" + listTag + ">")
				openList = listTag
			}
		}

		switch block.Type {
		case TypeHeading1, TypeHeading2, TypeHeading3, TypeHeading4, TypeHeading5, TypeHeading6:
			tag := "h" + strings.TrimPrefix(block.Type, "heading")
			writeElement(&b, tag, block)
		case TypePreformat:
			b.WriteString("<pre>")
			b.WriteString(html.EscapeString(block.Text))
			b.WriteString("</pre>")
		case TypeListItem, TypeOListItem:
			writeElement(&b, "li", block)
		case TypeImage:
			b.WriteString(`<p class="block-img"><img src="`)
			b.WriteString(html.EscapeString(block.URL))
			b.WriteString(`" alt="`)
			b.WriteString(html.EscapeString(block.Alt))
			b.WriteString(`" /></p>`)
		case TypeEmbed:
			if block.Oembed == nil {
				continue
			}
			b.WriteString(`<div data-oembed="`)
			b.WriteString(html.EscapeString(block.Oembed.EmbedURL))
			b.WriteString(`">`)
			b.WriteString(block.Oembed.HTML)
			b.WriteString("</div>")
		default:
			writeElement(&b, "p", block)
		}
	}
	closeList()
	return b.String()
}

func writeElement(b *strings.Builder, tag string, block Block) {
	b.WriteString("<" + tag + ">")
	b.WriteString(serializeSpans(block.Text, block.Spans))
	b.WriteString("</" + tag + ">")
}

type boundary struct {
	pos   int
	open  bool
	index int
}

// serializeSpans applies spans to text. Overlapping spans are closed and
// reopened so the output stays well formed.
func serializeSpans(text string, spans []Span) string {
	runeCount := utf8.RuneCountInString(text)
	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > runeCount || s.Start >= s.End {
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return escapeText(text)
	}

	bounds := make([]boundary, 0, len(valid)*2)
	for i, s := range valid {
		bounds = append(bounds, boundary{pos: s.Start, open: true, index: i}, boundary{pos: s.End, open: false, index: i})
	}
	sort.SliceStable(bounds, func(i, j int) bool {
		if bounds[i].pos != bounds[j].pos {
			return bounds[i].pos < bounds[j].pos
		}
		// closes before opens; among opens the longer span first
		if bounds[i].open != bounds[j].open {
			return !bounds[i].open
		}
		a, c := valid[bounds[i].index], valid[bounds[j].index]
		if bounds[i].open {
			return a.End > c.End
		}
		// the most recently opened span closes first
		if a.Start != c.Start {
			return a.Start > c.Start
		}
		return bounds[i].index > bounds[j].index
	})

	runes := []rune(text)
	var b strings.Builder
	var stack []int
	cursor := 0

	for _, bd := range bounds {
		if bd.pos > cursor {
			b.WriteString(escapeText(string(runes[cursor:bd.pos])))
			cursor = bd.pos
		}
		if bd.open {
			b.WriteString(openTag(valid[bd.index]))
			stack = append(stack, bd.index)
			continue
		}

		at := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i] == bd.index {
				at = i
				break
			}
		}
		if at < 0 {
			continue
		}
		for i := len(stack) - 1; i >= at; i-- {
			b.WriteString(closeTag(valid[stack[i]]))
		}
		reopen := append([]int(nil), stack[at+1:]...)
		stack = stack[:at]
		for _, idx := range reopen {
			b.WriteString(openTag(valid[idx]))
			stack = append(stack, idx)
		}
	}
	if cursor < len(runes) {
		b.WriteString(escapeText(string(runes[cursor:])))
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteString(closeTag(valid[stack[i]]))
	}
	return b.String()
}

func openTag(s Span) string {
	switch s.Type {
	case SpanStrong:
		return "<strong>"
	case SpanEm:
		return "<em>"
	case SpanHyperlink:
		if s.Data == nil || s.Data.URL == "" {
			return "<a>"
		}
		attrs := ` href="` + html.EscapeString(s.Data.URL) + `"`
		if s.Data.Target == linkTargetBlank {
			attrs += ` target="_blank" rel="noopener noreferrer"`
		}
		return "<a" + attrs + ">"
	case SpanLabel:
		label := ""
		if s.Data != nil {
			label = s.Data.Label
		}
		return `<span class="` + html.EscapeString(label) + `">`
	default:
		return "<span>"
	}
}

func closeTag(s Span) string {
	switch s.Type {
	case SpanStrong:
		return "</strong>"
	case SpanEm:
		return "</em>"
	case SpanHyperlink:
		return "</a>"
	default:
		return "</span>"
	}
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br />")
}
