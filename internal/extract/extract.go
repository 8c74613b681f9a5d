// Package extract pulls structured listing data out of heterogeneous page
// payloads. Pages embed their data as JSON-LD, as a framework hydration
// blob, or only in plain HTML metadata; each shape is a typed Strategy and
// the first one to satisfy the required fields wins.
package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Partial is a NormalizedItem-shaped partial result produced by one
// strategy. Zero fields mean "not found"; nothing is fabricated.
type Partial struct {
	Title       string
	Description string
	Price       string
	Currency    string
	Images      []string
	SellerName  string
	SellerURL   string
	Location    string
	PublishedAt time.Time
	Source      string
}

// Satisfied reports whether the partial carries the required title field.
func (p Partial) Satisfied() bool {
	return p.Title != ""
}

// Strategy extracts a Partial from a page body. ok is false when the
// payload shape this strategy understands is absent.
type Strategy interface {
	Name() string
	Extract(body []byte) (Partial, bool)
}

// Resolve runs the strategies in order and returns the first satisfied
// result. Unsatisfied partials fall through to the next strategy.
func Resolve(body []byte, strategies ...Strategy) (Partial, bool) {
	for _, s := range strategies {
		partial, ok := s.Extract(body)
		if !ok {
			continue
		}
		if partial.Satisfied() {
			partial.Source = s.Name()
			return partial, true
		}
	}
	return Partial{}, false
}

// DefaultStrategies is the fixed priority order for detail pages:
// JSON-LD product data, hydration heuristics, HTML metadata fallback.
func DefaultStrategies() []Strategy {
	return []Strategy{
		&JSONLDStrategy{},
		&HydrationStrategy{},
		&HTMLMetaStrategy{},
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText trims and collapses internal whitespace runs to single spaces.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// maxSecondEpoch separates second from millisecond epochs: anything above
// it would be past the year 5000 as seconds, so it must be milliseconds.
// The search API emits createdDate as a ms epoch.
const maxSecondEpoch = 100_000_000_000

// ParseTime converts a timestamp of unknown provenance (ISO string, unix
// seconds, or unix milliseconds) to UTC. Naive timestamps are assumed UTC.
// Returns the zero time when the value is unparseable.
func ParseTime(v any) time.Time {
	switch val := v.(type) {
	case nil:
		return time.Time{}
	case float64:
		return epochTime(int64(val))
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return epochTime(int64(f))
		}
		return time.Time{}
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC()
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

func epochTime(n int64) time.Time {
	if n > maxSecondEpoch || n < -maxSecondEpoch {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// asString renders scalar JSON values to a trimmed string; non-scalars
// yield "".
func asString(v any) string {
	switch val := v.(type) {
	case string:
		return CleanText(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// pick returns the first non-nil value among the given keys.
func pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
