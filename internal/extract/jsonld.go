package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// JSONLDStrategy reads schema.org Product/Offer nodes from
// application/ld+json script tags. This is the richest and most stable
// shape, so it runs first.
type JSONLDStrategy struct{}

// Name identifies the strategy in extraction provenance.
func (s *JSONLDStrategy) Name() string { return "jsonld" }

// Extract parses every JSON-LD block on the page and normalizes the first
// Product node found.
func (s *JSONLDStrategy) Extract(body []byte) (Partial, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Partial{}, false
	}

	var product map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		payload := strings.TrimSpace(sel.Text())
		if payload == "" {
			return true
		}
		var parsed any
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			return true
		}
		product = findProductNode(parsed)
		return product == nil
	})
	if product == nil {
		return Partial{}, false
	}

	partial := Partial{
		Title:       asString(product["name"]),
		Description: asString(product["description"]),
		Images:      normalizeImages(product["image"]),
		PublishedAt: ParseTime(pick(product, "datePosted", "releaseDate", "datePublished")),
	}
	if offer := firstOffer(product["offers"]); offer != nil {
		partial.Price = asString(offer["price"])
		partial.Currency = asString(offer["priceCurrency"])
		if seller, ok := offer["seller"].(map[string]any); ok {
			partial.SellerName = asString(seller["name"])
			partial.SellerURL = asString(pick(seller, "@id", "url"))
		}
		if area, ok := offer["areaServed"].(map[string]any); ok {
			partial.Location = asString(area["name"])
		}
	}
	return partial, true
}

// findProductNode handles direct Product objects, {"@graph":[...]} wrappers,
// arrays of documents, and Products nested one level down.
func findProductNode(v any) map[string]any {
	switch node := v.(type) {
	case map[string]any:
		if asString(node["@type"]) == "Product" {
			return node
		}
		if graph, ok := node["@graph"].([]any); ok {
			for _, entry := range graph {
				if p := findProductNode(entry); p != nil {
					return p
				}
			}
			for _, entry := range graph {
				if m, ok := entry.(map[string]any); ok {
					for _, inner := range m {
						if p := findProductNode(inner); p != nil {
							return p
						}
					}
				}
			}
		}
	case []any:
		for _, entry := range node {
			if p := findProductNode(entry); p != nil {
				return p
			}
		}
	}
	return nil
}

// firstOffer accepts offers as a single object or a list of objects.
func firstOffer(v any) map[string]any {
	switch offers := v.(type) {
	case map[string]any:
		return offers
	case []any:
		for _, entry := range offers {
			if m, ok := entry.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func normalizeImages(v any) []string {
	switch img := v.(type) {
	case string:
		if img == "" {
			return nil
		}
		return []string{img}
	case []any:
		out := make([]string, 0, len(img))
		for _, entry := range img {
			if s, ok := entry.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
