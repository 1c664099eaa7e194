package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iiadata/treaty-crawler/internal/ratelimit"
)

const testCountryURL = "https://example.org/international-investment-agreements/countries"

func newTestDiscovery(f *fakeFetcher, probeMax int) *DiscoveryEngine {
	return NewDiscoveryEngine(
		DiscoveryConfig{
			CountryURL: testCountryURL,
			SeedID:     1,
			SeedSlug:   "afghanistan",
			ProbeMaxID: probeMax,
		},
		f,
		NewRetryPolicy(2, time.Millisecond, zap.NewNop()),
		ratelimit.NewInterval("probe", 0),
		zap.NewNop(),
	)
}

func TestDiscoverFromSelectOptions(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.addPage(testCountryURL+"/1/afghanistan", testCountryURL+"/1/afghanistan", 200, `
		<html><body>
		<select id="country">
			<option value="">Select a country</option>
			<option value="/international-investment-agreements/countries/1/afghanistan">Afghanistan</option>
			<option value="/international-investment-agreements/countries/3/albania">Albania</option>
			<option value="/international-investment-agreements/countries/226/zimbabwe">Zimbabwe</option>
		</select>
		</body></html>`)

	anchors, err := newTestDiscovery(f, 0).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, anchors, 3)
	assert.Equal(t, Anchor{ID: 1, Slug: "afghanistan", Name: "Afghanistan"}, anchors[0])
	assert.Equal(t, Anchor{ID: 3, Slug: "albania", Name: "Albania"}, anchors[1])
	assert.Equal(t, Anchor{ID: 226, Slug: "zimbabwe", Name: "Zimbabwe"}, anchors[2])
}

func TestDiscoverFromHyperlinks(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	// No selector on the page, so discovery falls through to link scanning.
	// The repeated Albania link must not produce a duplicate anchor.
	f.addPage(testCountryURL+"/1/afghanistan", testCountryURL+"/1/afghanistan", 200, `
		<html><body>
		<a href="/international-investment-agreements/countries/3/albania">Albania</a>
		<a href="/international-investment-agreements/countries/3/albania">Albania again</a>
		<a href="/international-investment-agreements/countries/105/japan">Japan</a>
		<a href="/about">About</a>
		</body></html>`)

	anchors, err := newTestDiscovery(f, 0).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, anchors, 2)
	assert.Equal(t, 3, anchors[0].ID)
	assert.Equal(t, "Albania", anchors[0].Name)
	assert.Equal(t, 105, anchors[1].ID)
}

func TestDiscoverFromProbes(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	// Seed page carries neither selector nor country links.
	f.addPage(testCountryURL+"/1/afghanistan", testCountryURL+"/1/afghanistan", 200,
		`<html><body><p>index</p></body></html>`)

	// Probe ids 1..3: 1 resolves with a heading, 2 errors, 3 resolves
	// without a usable heading so the slug stands in for the name.
	f.addPage(testCountryURL+"/1/x", testCountryURL+"/1/afghanistan", 200,
		`<html><body><h1>Afghanistan</h1></body></html>`)
	f.addPage(testCountryURL+"/3/x", testCountryURL+"/3/albania", 200,
		`<html><body><p>no heading</p></body></html>`)

	anchors, err := newTestDiscovery(f, 3).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, anchors, 2)
	assert.Equal(t, Anchor{ID: 1, Slug: "afghanistan", Name: "Afghanistan"}, anchors[0])
	assert.Equal(t, Anchor{ID: 3, Slug: "albania", Name: "albania"}, anchors[1])
}

func TestDiscoverSeedRetries(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	seedURL := testCountryURL + "/1/afghanistan"
	f.failTimes(seedURL, 1)
	f.addPage(seedURL, seedURL, 200, `
		<html><body><select>
		<option value="/international-investment-agreements/countries/1/afghanistan">Afghanistan</option>
		</select></body></html>`)

	anchors, err := newTestDiscovery(f, 0).Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, anchors, 1)
	assert.Equal(t, 2, f.callCount(seedURL))
}

func TestDiscoverSeedFailureIsFatal(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	seedURL := testCountryURL + "/1/afghanistan"
	f.failTimes(seedURL, 10)

	_, err := newTestDiscovery(f, 0).Discover(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, f.callCount(seedURL))
}

func TestDiscoverNoAnchors(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.addPage(testCountryURL+"/1/afghanistan", testCountryURL+"/1/afghanistan", 200,
		`<html><body><p>index</p></body></html>`)

	_, err := newTestDiscovery(f, 0).Discover(context.Background())
	require.ErrorIs(t, err, ErrNoAnchors)
}

func TestParseAnchor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw    string
		wantID int
		ok     bool
	}{
		{"/international-investment-agreements/countries/42/kenya", 42, true},
		{"https://example.org/international-investment-agreements/countries/7/austria?tab=bits", 7, true},
		{"/international-investment-agreements/treaties/bit/12/albania-austria", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		a, ok := parseAnchor(tt.raw, "")
		assert.Equal(t, tt.ok, ok, "raw=%q", tt.raw)
		if ok {
			assert.Equal(t, tt.wantID, a.ID)
		}
	}
}

func TestDiscoverCancelledContext(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDiscovery(f, 0).Discover(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
