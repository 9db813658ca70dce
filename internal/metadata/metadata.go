// Package metadata parses sanitized head markup into structured tag data.
// It is a pure consumer of the proxy's sanitizer output: no network access,
// no security decisions. Values are scrubbed of residual markup before they
// reach callers.
package metadata

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
)

// Tags is the parsed tag data for one page.
type Tags struct {
	Title     string            `json:"title,omitempty"`
	Canonical string            `json:"canonical,omitempty"`
	Standard  map[string]string `json:"standard,omitempty"`
	OpenGraph map[string]string `json:"openGraph,omitempty"`
	Twitter   map[string]string `json:"twitter,omitempty"`
	JSONLD    []any             `json:"jsonLd,omitempty"`
}

// Parser extracts meta tags from sanitized head markup.
type Parser struct {
	scrub *bluemonday.Policy
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{scrub: bluemonday.StrictPolicy()}
}

// Parse extracts tags grouped by family: standard meta, Open Graph, Twitter
// cards, plus title, canonical link and decoded JSON-LD blocks. Malformed
// markup yields whatever could be read; Parse never fails.
func (p *Parser) Parse(head string) *Tags {
	tags := &Tags{
		Standard:  make(map[string]string),
		OpenGraph: make(map[string]string),
		Twitter:   make(map[string]string),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(head))
	if err != nil {
		return tags
	}

	tags.Title = p.clean(doc.Find("title").First().Text())
	if href, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok {
		tags.Canonical = strings.TrimSpace(href)
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := p.clean(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		if property := s.AttrOr("property", ""); property != "" {
			if strings.HasPrefix(property, "og:") {
				tags.OpenGraph[property] = content
			} else {
				tags.Standard[property] = content
			}
			return
		}
		if name := s.AttrOr("name", ""); name != "" {
			if strings.HasPrefix(name, "twitter:") {
				tags.Twitter[name] = content
			} else {
				tags.Standard[name] = content
			}
		}
	})

	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var data any
		if err := sonic.UnmarshalString(raw, &data); err == nil {
			tags.JSONLD = append(tags.JSONLD, data)
		}
	})

	return tags
}

// clean strips residual markup and whitespace from a tag value.
func (p *Parser) clean(value string) string {
	return strings.TrimSpace(p.scrub.Sanitize(value))
}
