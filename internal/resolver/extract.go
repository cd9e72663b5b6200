package resolver

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is a tentative image URL found in a document.
type Candidate struct {
	Src        string `json:"src"`
	SourceType string `json:"source_type"`
	Score      int    `json:"score"`
}

// parseDocument parses html leniently and attaches pageURL as the document
// base when it parses. Returns nil when no tree could be built.
func parseDocument(pageURL, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	if base, err := url.Parse(pageURL); err == nil {
		doc.Url = base
	}
	return doc
}

// ExtractCandidates walks every meta element and then every link element,
// in document order, and emits one candidate per (element, pattern) match.
func ExtractCandidates(doc *goquery.Document) []Candidate {
	if doc == nil {
		return nil
	}

	var candidates []Candidate
	visit := func(_ int, s *goquery.Selection) {
		for _, tag := range tagPatterns {
			if c, ok := match(s, tag); ok {
				candidates = append(candidates, c)
			}
		}
	}

	doc.Find("meta").Each(visit)
	doc.Find("link").Each(visit)

	return candidates
}

// match reports whether s satisfies tag. Attribute values compare
// case-sensitively; the src value is taken verbatim, even when empty.
func match(s *goquery.Selection, tag TagPattern) (Candidate, bool) {
	key, ok := s.Attr(tag.KeyAttribute)
	if !ok || key != tag.KeyValue {
		return Candidate{}, false
	}
	src, ok := s.Attr(tag.SrcAttribute)
	if !ok {
		return Candidate{}, false
	}
	return Candidate{Src: src, SourceType: tag.SourceType}, true
}
