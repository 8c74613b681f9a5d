package market

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/akozlov/ricwatch/internal/extract"
)

// itemListKeys are the payload keys that carry the result rows, in the
// order the search API has been seen to use them.
var itemListKeys = []string{"items", "results", "ads", "listings", "data"}

// searchURL builds one search API request: newest-first within the
// category, paged by offset.
func searchURL(cfg Config, cat CategoryRef, offset int) string {
	q := url.Values{}
	q.Set("categorySeoSlug", cat.Slug)
	q.Set("sort", "createdDateDesc")
	if offset > 0 {
		q.Set("nextPageOffset", strconv.Itoa(offset))
	}
	return strings.TrimRight(cfg.BaseURL, "/") + cfg.SearchPath + "?" + q.Encode()
}

// parseSearchPage decodes one search API response body.
func parseSearchPage(body []byte) (map[string]any, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// itemsList finds the result rows in a search payload: the known keys
// first, then any list of objects that look like listings.
func itemsList(payload map[string]any) []map[string]any {
	for _, key := range itemListKeys {
		if rows := objectList(payload[key]); rows != nil {
			return rows
		}
	}
	for _, v := range payload {
		rows := objectList(v)
		if rows == nil {
			continue
		}
		if _, ok := rows[0]["title"]; ok {
			return rows
		}
		if _, ok := rows[0]["seoUrl"]; ok {
			return rows
		}
	}
	return nil
}

func objectList(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil
		}
		out = append(out, m)
	}
	return out
}

// candidateFrom maps one search row to a RawCandidate. An empty URL means
// the row is unusable.
func candidateFrom(row map[string]any, baseURL string) RawCandidate {
	return RawCandidate{
		URL:       itemURL(row, baseURL),
		Title:     str(field(row, "title", "name")),
		Price:     str(field(row, "buy_now_price", "buyNowPrice", "price")),
		Image:     str(field(row, "image", "imageUrl", "image_url")),
		Published: extract.ParseTime(field(row, "createdDate", "created_date", "createdAt", "created")),
	}
}

// itemURL extracts the listing URL from a search row: an explicit URL
// field, or the SEO slug turned into the canonical listing path.
func itemURL(row map[string]any, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if raw := str(field(row, "seoUrl", "url", "itemUrl", "href")); raw != "" {
		if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
			return raw
		}
		if strings.HasPrefix(raw, "/") {
			return base + raw
		}
		return ""
	}
	if slug := str(field(row, "seoSlug", "seo_slug")); slug != "" {
		return base + "/de/a/" + strings.Trim(slug, "/") + "/"
	}
	return ""
}

// nextOffset finds the next page offset: a dedicated field at the top
// level or under paging/page, else offset advanced by the row count. A
// negative return ends the walk.
func nextOffset(payload map[string]any, current, rowCount int) int {
	scopes := []map[string]any{payload}
	for _, key := range []string{"paging", "page"} {
		if m, ok := payload[key].(map[string]any); ok {
			scopes = append(scopes, m)
		}
	}
	for _, scope := range scopes {
		if v := field(scope, "nextPageOffset", "next_offset", "nextOffset"); v != nil {
			n, ok := intValue(v)
			if !ok || n <= current {
				return -1
			}
			return n
		}
	}
	if rowCount == 0 {
		return -1
	}
	return current + rowCount
}

// fixedPrice reports whether a search row is a buy-now listing without
// bids. Rows missing the markers pass.
func fixedPrice(row map[string]any) bool {
	if v := field(row, "has_buy_now", "hasBuyNow"); v != nil {
		if b, ok := v.(bool); ok && !b {
			return false
		}
	}
	if v := field(row, "bids_count", "bidsCount"); v != nil {
		if n, ok := intValue(v); ok && n != 0 {
			return false
		}
	}
	return true
}

func field(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch val := v.(type) {
	case string:
		return extract.CleanText(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func intValue(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// beforeCutoff is the early-stop predicate: a known publish time strictly
// before the cutoff. Zero times never stop the walk.
func beforeCutoff(t time.Time, cutoff time.Time) bool {
	return !t.IsZero() && t.Before(cutoff)
}
