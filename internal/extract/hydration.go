package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HydrationStrategy mines the client-side hydration blob (the Next.js
// __NEXT_DATA__ script) for listing fields by scanning nested objects for
// heuristic field names. It runs after JSON-LD because the blob's shape
// drifts with every frontend release.
type HydrationStrategy struct{}

// Name identifies the strategy in extraction provenance.
func (s *HydrationStrategy) Name() string { return "hydration" }

var sellerNameKeys = []string{"sellerName", "seller_name", "username", "userName", "displayName", "nick"}

// Extract walks the hydration payload looking for a plausible item object
// and, separately, for a seller identity.
func (s *HydrationStrategy) Extract(body []byte) (Partial, bool) {
	data, ok := NextData(body)
	if !ok {
		return Partial{}, false
	}

	partial := Partial{}
	walk(data, func(m map[string]any) bool {
		title := asString(pick(m, "title", "name"))
		if len(title) < 3 {
			return false
		}
		if pick(m, "image", "img", "imageUrl", "image_url") == nil && pick(m, "url", "href", "price", "buy_now_price", "buyNowPrice") == nil {
			return false
		}
		partial.Title = title
		partial.Description = asString(pick(m, "description", "subtitle"))
		partial.Price = asString(pick(m, "buy_now_price", "buyNowPrice", "price", "buyNow"))
		if img := imageString(pick(m, "image", "img", "imageUrl", "image_url")); img != "" {
			partial.Images = []string{img}
		}
		partial.Location = asString(pick(m, "location", "city", "zipCode", "zip_code"))
		partial.PublishedAt = ParseTime(pick(m, "createdDate", "created_date", "createdAt", "created"))
		return true
	})

	walk(data, func(m map[string]any) bool {
		for _, key := range sellerNameKeys {
			v, ok := m[key].(string)
			if !ok {
				continue
			}
			v = CleanText(v)
			if len(v) >= 2 && len(v) <= 80 {
				partial.SellerName = v
				partial.SellerURL = asString(pick(m, "sellerUrl", "seller_url", "profileUrl", "profile_url"))
				return true
			}
		}
		return false
	})

	if partial.Title == "" && partial.SellerName == "" {
		return Partial{}, false
	}
	return partial, true
}

// NextData locates and parses the page's hydration JSON blob.
func NextData(body []byte) (any, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}
	payload := strings.TrimSpace(doc.Find(`script#__NEXT_DATA__`).First().Text())
	if payload == "" {
		return nil, false
	}
	var data any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, false
	}
	return data, true
}

// walk visits every JSON object in the tree depth-first until the visitor
// returns true.
func walk(v any, visit func(map[string]any) bool) bool {
	switch node := v.(type) {
	case map[string]any:
		if visit(node) {
			return true
		}
		for _, child := range node {
			if walk(child, visit) {
				return true
			}
		}
	case []any:
		for _, child := range node {
			if walk(child, visit) {
				return true
			}
		}
	}
	return false
}

// CandidateHint is a loosely-typed listing-row record mined from a listing
// page's hydration blob. It feeds pagination discovery, not detail output.
type CandidateHint struct {
	Title     string
	URL       string
	Price     string
	Image     string
	Published string
	HasBuyNow *bool
	BidCount  *int
}

// FixedPrice reports whether the row looks like a buy-now listing with no
// bids. Rows that do not carry the auction markers pass.
func (c CandidateHint) FixedPrice() bool {
	if c.HasBuyNow != nil && !*c.HasBuyNow {
		return false
	}
	if c.BidCount != nil && *c.BidCount != 0 {
		return false
	}
	return true
}

// ListingCandidates scans a hydration payload for objects that look like
// listing rows: a usable title plus auction markers plus an image or URL.
// Relative URLs are resolved against baseURL.
func ListingCandidates(data any, baseURL string) []CandidateHint {
	var out []CandidateHint
	walk(data, func(m map[string]any) bool {
		title := asString(pick(m, "title", "name"))
		if len(title) < 3 {
			return false
		}
		if pick(m, "buy_now_price", "buyNowPrice", "has_buy_now", "hasBuyNow", "bids_count", "bidsCount") == nil {
			return false
		}
		if pick(m, "image", "img", "url", "href") == nil {
			return false
		}

		hint := CandidateHint{
			Title:     title,
			Price:     asString(pick(m, "buy_now_price", "buyNowPrice", "price", "buyNow")),
			Image:     imageString(pick(m, "image", "img", "imageUrl", "image_url")),
			Published: asString(pick(m, "createdDate", "created_date", "createdAt", "created")),
			HasBuyNow: asBoolPtr(pick(m, "has_buy_now", "hasBuyNow")),
			BidCount:  asIntPtr(pick(m, "bids_count", "bidsCount")),
		}
		hint.URL = resolveURL(pick(m, "url", "href", "link"), baseURL)
		if hint.URL != "" {
			out = append(out, hint)
		}
		return false // keep scanning, listing pages hold many rows
	})
	return out
}

func resolveURL(v any, baseURL string) string {
	raw := ""
	switch u := v.(type) {
	case string:
		raw = u
	case map[string]any:
		raw = asString(pick(u, "url", "href"))
	}
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "/"):
		return strings.TrimRight(baseURL, "/") + raw
	default:
		return ""
	}
}

func imageString(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case map[string]any:
		return asString(pick(img, "url", "src"))
	default:
		return ""
	}
}

func asBoolPtr(v any) *bool {
	switch val := v.(type) {
	case bool:
		return &val
	case string:
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err != nil {
			return nil
		}
		return &b
	case float64:
		b := val != 0
		return &b
	default:
		return nil
	}
}

func asIntPtr(v any) *int {
	switch val := v.(type) {
	case float64:
		n := int(val)
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}
