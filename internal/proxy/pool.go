package proxy

import (
	"sync"
)

// Pool holds the rotating proxy set. Rotation is plain round-robin over the
// current set; the cursor can be exported and restored so consecutive runs
// (including across process restarts) do not keep hitting the same proxy
// first. Health counters are advisory: a proxy is never banned in-process,
// the caller decides whether to move on to the next one.
type Pool struct {
	mu       sync.Mutex
	proxies  []Proxy
	cursor   int
	failures map[string]int
}

// NewPool parses the given entries into a pool. Malformed entries are
// dropped silently, matching the forgiving intake of pasted proxy lists.
func NewPool(lines []string) *Pool {
	p := &Pool{failures: make(map[string]int)}
	p.ReplaceAll(lines)
	return p
}

// Next returns the next proxy in rotation. With no proxies configured it
// returns the direct (zero-value) proxy rather than an error.
func (p *Pool) Next() Proxy {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return Proxy{}
	}
	px := p.proxies[p.cursor%len(p.proxies)]
	p.cursor = (p.cursor + 1) % len(p.proxies)
	return px
}

// RecordFailure bumps the advisory failure counter for the proxy.
func (p *Pool) RecordFailure(px Proxy) {
	if px.IsDirect() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[px.URL()]++
}

// RecordSuccess resets the advisory failure counter for the proxy.
func (p *Pool) RecordSuccess(px Proxy) {
	if px.IsDirect() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, px.URL())
}

// Failures returns the consecutive failure count recorded for the proxy.
func (p *Pool) Failures(px Proxy) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures[px.URL()]
}

// List returns the canonical URL form of every proxy in rotation order.
func (p *Pool) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.proxies))
	for _, px := range p.proxies {
		out = append(out, px.URL())
	}
	return out
}

// Health describes one proxy without credentials plus its advisory
// failure count.
type Health struct {
	Proxy    string `json:"proxy"`
	Failures int    `json:"failures"`
}

// Health reports the pool in rotation order for status surfaces. The
// credential-free form is used so the report is safe to expose.
func (p *Pool) Health() []Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Health, 0, len(p.proxies))
	for _, px := range p.proxies {
		out = append(out, Health{Proxy: px.String(), Failures: p.failures[px.URL()]})
	}
	return out
}

// ReplaceAll swaps the proxy set for the parsed entries, resets the cursor,
// and returns how many entries were accepted.
func (p *Pool) ReplaceAll(lines []string) int {
	parsed := make([]Proxy, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		px, err := Parse(line)
		if err != nil {
			continue
		}
		key := px.URL()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		parsed = append(parsed, px)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.proxies = parsed
	p.cursor = 0
	p.failures = make(map[string]int)
	return len(parsed)
}

// Clear removes every proxy; Next falls back to direct afterwards.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.proxies = nil
	p.cursor = 0
	p.failures = make(map[string]int)
}

// Len reports the number of configured proxies.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Cursor returns the current rotation position for persistence.
func (p *Pool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// SetCursor restores a persisted rotation position. Out-of-range values are
// folded back into the current set.
func (p *Pool) SetCursor(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 || n < 0 {
		p.cursor = 0
		return
	}
	p.cursor = n % len(p.proxies)
}
