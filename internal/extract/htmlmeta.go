package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// HTMLMetaStrategy is the last-resort fallback: plain HTML metadata.
// It recovers only title, photo, and description, leaving the rest empty.
type HTMLMetaStrategy struct{}

// Name identifies the strategy in extraction provenance.
func (s *HTMLMetaStrategy) Name() string { return "htmlmeta" }

// Extract reads og: properties and the document title.
func (s *HTMLMetaStrategy) Extract(body []byte) (Partial, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Partial{}, false
	}

	partial := Partial{}
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		partial.Title = CleanText(v)
	}
	if partial.Title == "" {
		partial.Title = CleanText(doc.Find("title").First().Text())
	}
	if v, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && v != "" {
		partial.Images = []string{v}
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		partial.Description = CleanText(v)
	}

	if partial.Title == "" {
		return Partial{}, false
	}
	return partial, true
}
