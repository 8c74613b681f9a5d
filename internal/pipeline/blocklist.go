package pipeline

import "strings"

// SellerBlocklist stores exact seller names and prefix wildcards from
// subscriber configuration. Matching is case-insensitive.
type SellerBlocklist struct {
	exact    map[string]struct{}
	prefixes []string
}

// NewSellerBlocklist folds shared and per-subscriber pattern lists into
// one matcher. A pattern ending in "*" matches by prefix. Returns nil
// when every list is empty; a nil blocklist never blocks.
func NewSellerBlocklist(lists ...[]string) *SellerBlocklist {
	matcher := &SellerBlocklist{
		exact: make(map[string]struct{}),
	}
	for _, list := range lists {
		for _, raw := range list {
			value := strings.TrimSpace(strings.ToLower(raw))
			if value == "" {
				continue
			}
			if strings.HasSuffix(value, "*") {
				prefix := strings.TrimSuffix(value, "*")
				if prefix != "" {
					matcher.addPrefix(prefix)
				}
				continue
			}
			matcher.exact[value] = struct{}{}
		}
	}
	if len(matcher.exact) == 0 && len(matcher.prefixes) == 0 {
		return nil
	}
	return matcher
}

func (b *SellerBlocklist) addPrefix(prefix string) {
	for _, existing := range b.prefixes {
		if existing == prefix {
			return
		}
	}
	b.prefixes = append(b.prefixes, prefix)
}

// IsBlocked reports whether the seller name matches the blocklist. An
// empty seller name is never blocked.
func (b *SellerBlocklist) IsBlocked(seller string) bool {
	if b == nil {
		return false
	}
	seller = strings.TrimSpace(strings.ToLower(seller))
	if seller == "" {
		return false
	}
	if _, exact := b.exact[seller]; exact {
		return true
	}
	for _, prefix := range b.prefixes {
		if strings.HasPrefix(seller, prefix) {
			return true
		}
	}
	return false
}
