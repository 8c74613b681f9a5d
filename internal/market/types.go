// Package market knows the marketplace itself: how categories are named,
// how the search API pages through fresh listings, and how a listing URL
// is resolved into a normalized item.
package market

import "time"

// Item is a fully resolved listing, the currency of the pipeline. Field
// names follow the batch wire format.
type Item struct {
	Title       string    `json:"title"`
	Price       string    `json:"price,omitempty"`
	URL         string    `json:"url"`
	Photo       string    `json:"photo,omitempty"`
	Description string    `json:"description,omitempty"`
	SellerName  string    `json:"seller_name,omitempty"`
	SellerURL   string    `json:"seller_url,omitempty"`
	Location    string    `json:"location,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// RawCandidate is a listing reference mined from a search or category
// page. Only URL is guaranteed; Published is a hint and may be zero.
type RawCandidate struct {
	URL       string
	Title     string
	Price     string
	Image     string
	Published time.Time
}

// Config tunes discovery and resolution.
type Config struct {
	BaseURL        string
	SearchPath     string
	MaxPages       int
	FixedPriceOnly bool
}

const (
	defaultBaseURL    = "https://www.ricardo.ch"
	defaultSearchPath = "/api/rmf/search"
	defaultMaxPages   = 8
)

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.SearchPath == "" {
		c.SearchPath = defaultSearchPath
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	return c
}
