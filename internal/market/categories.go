package market

import "strings"

// CategoryRef names one category by its SEO slug. The zero value is the
// all-categories sentinel, which expands to the popular-category set.
type CategoryRef struct {
	Slug string
}

// popularCategories is the default expansion of the all-categories
// sentinel: the high-churn slugs worth polling when a subscriber does not
// name a category.
var popularCategories = []string{
	"kleider-accessoires-403",
	"damenmode-accessoires-402",
	"sport-freizeit-410",
	"wohnen-haushalt-405",
	"garten-heimwerken-406",
	"baby-kind-407",
	"handys-smartphones-416",
	"notebooks-418",
	"computer-netzwerk-417",
	"uhren-schmuck-408",
	"beauty-gesundheit-412",
}

// ParseCategory accepts a bare slug, a full category URL (the slug sits
// in the /c/<slug>/ path segment), or an all-categories marker ("", "all",
// "*").
func ParseCategory(s string) CategoryRef {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "all", "*":
		return CategoryRef{}
	}
	if strings.Contains(s, "://") || strings.HasPrefix(s, "/") {
		if slug := slugFromPath(s); slug != "" {
			return CategoryRef{Slug: slug}
		}
		return CategoryRef{}
	}
	return CategoryRef{Slug: strings.Trim(s, "/")}
}

func slugFromPath(s string) string {
	marker := "/c/"
	idx := strings.Index(s, marker)
	if idx < 0 {
		return ""
	}
	rest := s[idx+len(marker):]
	if cut := strings.IndexAny(rest, "/?#"); cut >= 0 {
		rest = rest[:cut]
	}
	return rest
}

// IsAll reports whether the ref is the all-categories sentinel.
func (c CategoryRef) IsAll() bool { return c.Slug == "" }

// Expand resolves the ref to concrete slugs. A concrete ref expands to
// itself.
func (c CategoryRef) Expand() []CategoryRef {
	if !c.IsAll() {
		return []CategoryRef{c}
	}
	out := make([]CategoryRef, len(popularCategories))
	for i, slug := range popularCategories {
		out[i] = CategoryRef{Slug: slug}
	}
	return out
}

// PageURL is the human listing page for the category, used by the
// rendered fallback path.
func (c CategoryRef) PageURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/de/c/" + c.Slug + "/"
}
