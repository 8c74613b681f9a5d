package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akozlov/ricwatch/internal/fetch"
	"github.com/akozlov/ricwatch/internal/proxy"
)

type stubFetcher struct {
	fn func(ctx context.Context, rawURL string, px proxy.Proxy) (fetch.Result, error)
}

func (s *stubFetcher) Fetch(ctx context.Context, rawURL string, px proxy.Proxy) (fetch.Result, error) {
	return s.fn(ctx, rawURL, px)
}

func okJSON(body string) (fetch.Result, error) {
	return fetch.Result{StatusCode: 200, Status: fetch.StatusOK, Body: []byte(body)}, nil
}

func offsetOf(t *testing.T, rawURL string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	raw := u.Query().Get("nextPageOffset")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	require.NoError(t, err)
	return n
}

func TestParseCategory(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want CategoryRef
	}{
		{"bare slug", "notebooks-418", CategoryRef{Slug: "notebooks-418"}},
		{"full url", "https://www.ricardo.ch/de/c/uhren-schmuck-408/?sort=newest", CategoryRef{Slug: "uhren-schmuck-408"}},
		{"path only", "/de/c/baby-kind-407/", CategoryRef{Slug: "baby-kind-407"}},
		{"all marker", "all", CategoryRef{}},
		{"star marker", "*", CategoryRef{}},
		{"empty", "  ", CategoryRef{}},
		{"url without category segment", "https://www.ricardo.ch/de/", CategoryRef{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ParseCategory(tc.in))
		})
	}
}

func TestCategoryExpand(t *testing.T) {
	concrete := CategoryRef{Slug: "notebooks-418"}
	require.Equal(t, []CategoryRef{concrete}, concrete.Expand())

	all := CategoryRef{}
	require.True(t, all.IsAll())
	expanded := all.Expand()
	require.Len(t, expanded, len(popularCategories))
	for _, ref := range expanded {
		require.False(t, ref.IsAll())
	}
}

func TestDiscoverPagination(t *testing.T) {
	pages := map[int]string{
		0: `{"items":[
			{"title":"A","seoUrl":"/de/a/a-1/","createdDate":"2026-02-11T10:00:00Z"},
			{"title":"B","seoSlug":"b-2","createdDate":"2026-02-11T09:59:00Z"}],
			"nextPageOffset":60}`,
		60: `{"items":[
			{"title":"C","url":"https://www.ricardo.ch/de/a/c-3/","createdDate":"2026-02-11T09:58:00Z"}]}`,
		61: `{"items":[]}`,
	}
	var seen []int
	client := &stubFetcher{fn: func(_ context.Context, rawURL string, _ proxy.Proxy) (fetch.Result, error) {
		offset := offsetOf(t, rawURL)
		seen = append(seen, offset)
		body, ok := pages[offset]
		require.True(t, ok, "unexpected offset %d", offset)
		return okJSON(body)
	}}

	d := NewDiscoverer(Config{}, client, nil, proxy.NewPool(nil), zap.NewNop())
	cands, err := d.Discover(context.Background(), CategoryRef{Slug: "notebooks-418"}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, []int{0, 60, 61}, seen)
	require.Len(t, cands, 3)
	require.Equal(t, "https://www.ricardo.ch/de/a/a-1/", cands[0].URL)
	require.Equal(t, "https://www.ricardo.ch/de/a/b-2/", cands[1].URL)
	require.Equal(t, "https://www.ricardo.ch/de/a/c-3/", cands[2].URL)
}

func TestDiscoverEarlyCutoffStop(t *testing.T) {
	var fetches int
	client := &stubFetcher{fn: func(_ context.Context, _ string, _ proxy.Proxy) (fetch.Result, error) {
		fetches++
		return okJSON(`{"items":[
			{"title":"fresh","seoUrl":"/de/a/fresh-1/","createdDate":"2026-02-11T10:00:00Z"},
			{"title":"stale","seoUrl":"/de/a/stale-2/","createdDate":"2026-02-10T10:00:00Z"},
			{"title":"never reached","seoUrl":"/de/a/x-3/"}],
			"nextPageOffset":60}`)
	}}

	cutoff := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)
	d := NewDiscoverer(Config{}, client, nil, proxy.NewPool(nil), zap.NewNop())
	cands, err := d.Discover(context.Background(), CategoryRef{Slug: "notebooks-418"}, cutoff)
	require.NoError(t, err)
	require.Equal(t, 1, fetches, "stale row must end the walk before the next page")
	require.Len(t, cands, 1)
	require.Equal(t, "https://www.ricardo.ch/de/a/fresh-1/", cands[0].URL)
}

func TestDiscoverMillisecondCreatedDate(t *testing.T) {
	// The search API emits createdDate as a ms epoch. 1770804000000 is
	// 2026-02-11T10:00:00Z, 1770717600000 is a day earlier.
	var fetches int
	client := &stubFetcher{fn: func(_ context.Context, _ string, _ proxy.Proxy) (fetch.Result, error) {
		fetches++
		return okJSON(`{"items":[
			{"title":"fresh","seoUrl":"/de/a/fresh-1/","createdDate":1770804000000},
			{"title":"stale","seoUrl":"/de/a/stale-2/","createdDate":1770717600000}],
			"nextPageOffset":60}`)
	}}

	cutoff := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)
	d := NewDiscoverer(Config{}, client, nil, proxy.NewPool(nil), zap.NewNop())
	cands, err := d.Discover(context.Background(), CategoryRef{Slug: "notebooks-418"}, cutoff)
	require.NoError(t, err)
	require.Equal(t, 1, fetches, "stale ms timestamp must end the walk")
	require.Len(t, cands, 1)
	require.Equal(t, time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC), cands[0].Published)
}

func TestDiscoverPageCeiling(t *testing.T) {
	var fetches int
	client := &stubFetcher{fn: func(_ context.Context, rawURL string, _ proxy.Proxy) (fetch.Result, error) {
		fetches++
		offset := offsetOf(t, rawURL)
		return okJSON(fmt.Sprintf(`{"items":[{"title":"row","seoSlug":"row-%d"}],"nextPageOffset":%d}`, offset, offset+1))
	}}

	d := NewDiscoverer(Config{MaxPages: 3}, client, nil, proxy.NewPool(nil), zap.NewNop())
	cands, err := d.Discover(context.Background(), CategoryRef{Slug: "notebooks-418"}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 3, fetches)
	require.Len(t, cands, 3)
}

func TestDiscoverFixedPriceOnly(t *testing.T) {
	client := &stubFetcher{fn: func(_ context.Context, _ string, _ proxy.Proxy) (fetch.Result, error) {
		return okJSON(`{"items":[
			{"title":"buy now","seoUrl":"/de/a/bn-1/","has_buy_now":true,"bids_count":0},
			{"title":"auction only","seoUrl":"/de/a/au-2/","has_buy_now":false},
			{"title":"has bids","seoUrl":"/de/a/hb-3/","has_buy_now":true,"bids_count":2},
			{"title":"no markers","seoUrl":"/de/a/nm-4/"}]}`)
	}}

	d := NewDiscoverer(Config{FixedPriceOnly: true}, client, nil, proxy.NewPool(nil), zap.NewNop())
	cands, err := d.Discover(context.Background(), CategoryRef{Slug: "notebooks-418"}, time.Time{})
	require.NoError(t, err)
	require.Len(t, cands, 2)
	require.Equal(t, "https://www.ricardo.ch/de/a/bn-1/", cands[0].URL)
	require.Equal(t, "https://www.ricardo.ch/de/a/nm-4/", cands[1].URL)
}

func TestDiscoverRenderedFallback(t *testing.T) {
	client := &stubFetcher{fn: func(_ context.Context, _ string, _ proxy.Proxy) (fetch.Result, error) {
		return fetch.Result{StatusCode: 403, Status: fetch.StatusBlocked}, nil
	}}
	renderer := &stubFetcher{fn: func(_ context.Context, rawURL string, _ proxy.Proxy) (fetch.Result, error) {
		require.Equal(t, "https://www.ricardo.ch/de/c/notebooks-418/", rawURL)
		page := `<html><body><script id="__NEXT_DATA__" type="application/json">
		{"results":[{"title":"Rendered Row","url":"/de/a/rr-1/","buy_now_price":50,"image":"https://img/r.jpg"}]}
		</script></body></html>`
		return fetch.Result{StatusCode: 200, Status: fetch.StatusOK, Body: []byte(page), Rendered: true}, nil
	}}

	d := NewDiscoverer(Config{}, client, renderer, proxy.NewPool(nil), zap.NewNop())
	cands, err := d.Discover(context.Background(), CategoryRef{Slug: "notebooks-418"}, time.Time{})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, "https://www.ricardo.ch/de/a/rr-1/", cands[0].URL)
	require.Equal(t, "Rendered Row", cands[0].Title)
}

func TestDiscoverNoRendererSurfacesError(t *testing.T) {
	client := &stubFetcher{fn: func(_ context.Context, _ string, _ proxy.Proxy) (fetch.Result, error) {
		return fetch.Result{StatusCode: 429, Status: fetch.StatusBlocked}, nil
	}}
	d := NewDiscoverer(Config{}, client, nil, proxy.NewPool(nil), zap.NewNop())
	_, err := d.Discover(context.Background(), CategoryRef{Slug: "notebooks-418"}, time.Time{})
	require.Error(t, err)
}

func TestRotationBudget(t *testing.T) {
	pool := proxy.NewPool([]string{"10.0.0.1:1080", "10.0.0.2:1080"})
	var attempts int
	client := &stubFetcher{fn: func(_ context.Context, _ string, _ proxy.Proxy) (fetch.Result, error) {
		attempts++
		return fetch.Result{}, errors.New("dial refused")
	}}

	_, err := fetchWithRotation(context.Background(), client, pool, zap.NewNop(), "https://example.org/")
	require.Error(t, err)
	require.Equal(t, 3, attempts, "budget is pool size plus one")
}

func TestRotationStopsOnNotFound(t *testing.T) {
	pool := proxy.NewPool([]string{"10.0.0.1:1080", "10.0.0.2:1080"})
	var attempts int
	client := &stubFetcher{fn: func(_ context.Context, _ string, _ proxy.Proxy) (fetch.Result, error) {
		attempts++
		return fetch.Result{StatusCode: 404, Status: fetch.StatusNotFound}, nil
	}}

	res, err := fetchWithRotation(context.Background(), client, pool, zap.NewNop(), "https://example.org/")
	require.NoError(t, err)
	require.Equal(t, fetch.StatusNotFound, res.Status)
	require.Equal(t, 1, attempts)
}

func TestResolveDetail(t *testing.T) {
	page := `<html><head><script type="application/ld+json">
	{"@type":"Product","name":"Omega Seamaster","description":"Boxed.",
	 "image":"https://img/omega.jpg","datePublished":"2026-02-11T10:00:00Z",
	 "offers":{"price":450.5,"priceCurrency":"CHF",
	           "seller":{"name":"uhrenfan81","url":"https://www.ricardo.ch/de/shop/uhrenfan81/"}}}
	</script></head></html>`
	client := &stubFetcher{fn: func(_ context.Context, rawURL string, _ proxy.Proxy) (fetch.Result, error) {
		return fetch.Result{StatusCode: 200, Status: fetch.StatusOK, Body: []byte(page), FinalURL: rawURL}, nil
	}}

	r := NewResolver(client, nil, proxy.NewPool(nil), zap.NewNop())
	item, ok, err := r.Resolve(context.Background(), "https://www.ricardo.ch/de/a/omega-1/")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Omega Seamaster", item.Title)
	require.Equal(t, "450.5 CHF", item.Price)
	require.Equal(t, "https://www.ricardo.ch/de/a/omega-1/", item.URL)
	require.Equal(t, "https://img/omega.jpg", item.Photo)
	require.Equal(t, "uhrenfan81", item.SellerName)
	require.Equal(t, time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC), item.PublishedAt)
}

func TestResolveNotFoundSkips(t *testing.T) {
	client := &stubFetcher{fn: func(_ context.Context, _ string, _ proxy.Proxy) (fetch.Result, error) {
		return fetch.Result{StatusCode: 404, Status: fetch.StatusNotFound}, nil
	}}
	r := NewResolver(client, nil, proxy.NewPool(nil), zap.NewNop())
	_, ok, err := r.Resolve(context.Background(), "https://www.ricardo.ch/de/a/gone-1/")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolveUnextractableSkips(t *testing.T) {
	client := &stubFetcher{fn: func(_ context.Context, _ string, _ proxy.Proxy) (fetch.Result, error) {
		return fetch.Result{StatusCode: 200, Status: fetch.StatusOK, Body: []byte("<html><body>sparse</body></html>")}, nil
	}}
	r := NewResolver(client, nil, proxy.NewPool(nil), zap.NewNop())
	_, ok, err := r.Resolve(context.Background(), "https://www.ricardo.ch/de/a/sparse-1/")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNextOffset(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		current int
		rows    int
		want    int
	}{
		{"top level", `{"nextPageOffset":60}`, 0, 30, 60},
		{"under paging", `{"paging":{"next_offset":90}}`, 60, 30, 90},
		{"absent defaults to advance", `{}`, 60, 30, 90},
		{"non advancing ends walk", `{"nextPageOffset":60}`, 60, 30, -1},
		{"absent with no rows ends walk", `{}`, 60, 0, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, ok := parseSearchPage([]byte(tc.payload))
			require.True(t, ok)
			require.Equal(t, tc.want, nextOffset(payload, tc.current, tc.rows))
		})
	}
}

func TestItemsListHeuristic(t *testing.T) {
	payload, ok := parseSearchPage([]byte(`{"meta":{"took":3},"hits":[{"title":"X","seoUrl":"/de/a/x-1/"}]}`))
	require.True(t, ok)
	rows := itemsList(payload)
	require.Len(t, rows, 1)
	require.Equal(t, "X", rows[0]["title"])
}
