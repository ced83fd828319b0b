package xcubesh

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func dailyCubeConfig(t *testing.T, period bool) *CubeConfig {
	t.Helper()
	t1 := time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2017, 8, 31, 0, 0, 0, 0, time.UTC)
	opts := []Option{
		WithDatasetName("S2L2A"),
		WithBandNames("B01"),
		WithBbox(10, 50, 11, 51),
		WithSpatialRes(0.00025),
		WithTileSize(1000, 1000),
		WithTimeRange(&t1, &t2),
	}
	if period {
		opts = append(opts, WithTimePeriod(24*time.Hour))
	}
	return mustConfig(t, opts...)
}

func TestRegularAxisInclusiveEnd(t *testing.T) {
	cfg := dailyCubeConfig(t, true)
	builder := NewTimeAxisBuilder(nil)
	axis, err := builder.Build(context.Background(), cfg, "S2L2A")
	assert.Nil(t, err)

	// a 30-day range aligned on a daily period yields 31 centers: the
	// upper bound is inclusive when the period divides the span exactly
	assert.Equal(t, 31, axis.Len())
	assert.Equal(t, time.Date(2017, 8, 1, 12, 0, 0, 0, time.UTC), axis.Center(0))
	assert.Equal(t, time.Date(2017, 8, 2, 12, 0, 0, 0, time.UTC), axis.Center(1))
	assert.Equal(t, time.Date(2017, 8, 3, 12, 0, 0, 0, time.UTC), axis.Center(2))

	bnds := axis.Bounds(0)
	assert.Equal(t, time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC), bnds.Start)
	assert.Equal(t, time.Date(2017, 8, 2, 0, 0, 0, 0, time.UTC), bnds.End)
}

func TestRegularAxisUnalignedEnd(t *testing.T) {
	t1 := time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2017, 8, 3, 11, 0, 0, 0, time.UTC)
	cfg := mustConfig(t,
		WithDatasetName("S2L2A"),
		WithBbox(10, 50, 11, 51),
		WithSpatialRes(0.00025),
		WithTimeRange(&t1, &t2),
		WithTimePeriod(24*time.Hour),
	)
	axis, err := NewTimeAxisBuilder(nil).Build(context.Background(), cfg, "S2L2A")
	assert.Nil(t, err)
	assert.Equal(t, 2, axis.Len())
}

// pagedCatalogClient serves a fixed feature list one catalog page at a
// time and records the offsets it was asked for.
type pagedCatalogClient struct {
	features []Feature
	offsets  []int
	calls    int
}

func (c *pagedCatalogClient) FetchFeatures(_ context.Context, _ string, _ orb.Bound, _ TimeRange, limit, offset int) ([]Feature, error) {
	c.calls++
	c.offsets = append(c.offsets, offset)
	if offset >= len(c.features) {
		return nil, nil
	}
	end := offset + limit
	if end > len(c.features) {
		end = len(c.features)
	}
	return c.features[offset:end], nil
}

func TestIrregularAxisCoalescesByDay(t *testing.T) {
	client := &pagedCatalogClient{features: []Feature{
		// out of order on purpose; the builder sorts
		{Date: "2017-08-02", Time: "10:21:15"},
		{Date: "2017-08-01", Time: "10:20:14"},
		{Date: "2017-08-01", Time: "10:05:04"},
		{Date: "2017-08-05", Time: "10:10:10"},
		{Date: "2017-08-02", Time: "10:01:00"},
	}}

	cfg := dailyCubeConfig(t, false)
	axis, err := NewTimeAxisBuilder(client).Build(context.Background(), cfg, "S2L2A")
	assert.Nil(t, err)

	assert.False(t, axis.Regular)
	assert.Equal(t, 3, axis.Len())

	day1 := axis.Bounds(0)
	assert.Equal(t, time.Date(2017, 8, 1, 10, 5, 4, 0, time.UTC), day1.Start)
	assert.Equal(t, time.Date(2017, 8, 1, 10, 20, 14, 0, time.UTC), day1.End)

	day2 := axis.Bounds(1)
	assert.Equal(t, time.Date(2017, 8, 2, 10, 1, 0, 0, time.UTC), day2.Start)
	assert.Equal(t, time.Date(2017, 8, 2, 10, 21, 15, 0, time.UTC), day2.End)

	day3 := axis.Bounds(2)
	assert.Equal(t, day3.Start, day3.End)

	// center is the range midpoint
	mid := day1.Start.Add(day1.End.Sub(day1.Start) / 2)
	assert.Equal(t, mid, axis.Center(0))
}

func TestIrregularAxisPaginates(t *testing.T) {
	var features []Feature
	for i := 0; i < 250; i++ {
		day := 1 + i/100 // 100 features per day across 3 days
		features = append(features, Feature{
			Date: fmt.Sprintf("2017-08-%02d", day),
			Time: fmt.Sprintf("10:%02d:%02d", (i%100)/60, (i%100)%60),
		})
	}
	client := &pagedCatalogClient{features: features}

	cfg := dailyCubeConfig(t, false)
	axis, err := NewTimeAxisBuilder(client).Build(context.Background(), cfg, "S2L2A")
	assert.Nil(t, err)

	assert.Equal(t, []int{0, 100, 200}, client.offsets)
	assert.Equal(t, 3, axis.Len())
}

type mapAxisCache struct {
	entries map[string][]TimeRange
	lookups int
	stores  int
}

func (c *mapAxisCache) key(collectionID string, bbox orb.Bound, timeRange TimeRange) string {
	return fmt.Sprintf("%s|%v|%v", collectionID, bbox, timeRange)
}

func (c *mapAxisCache) Lookup(collectionID string, bbox orb.Bound, timeRange TimeRange) ([]TimeRange, bool) {
	c.lookups++
	ranges, ok := c.entries[c.key(collectionID, bbox, timeRange)]
	return ranges, ok
}

func (c *mapAxisCache) Store(collectionID string, bbox orb.Bound, timeRange TimeRange, ranges []TimeRange) error {
	c.stores++
	c.entries[c.key(collectionID, bbox, timeRange)] = ranges
	return nil
}

func TestIrregularAxisCacheSkipsCatalog(t *testing.T) {
	client := &pagedCatalogClient{features: []Feature{
		{Date: "2017-08-01", Time: "10:05:04"},
	}}
	cache := &mapAxisCache{entries: make(map[string][]TimeRange)}
	builder := NewTimeAxisBuilderWithCache(client, cache)
	cfg := dailyCubeConfig(t, false)

	first, err := builder.Build(context.Background(), cfg, "S2L2A")
	assert.Nil(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, cache.stores)

	second, err := builder.Build(context.Background(), cfg, "S2L2A")
	assert.Nil(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, first.Ranges, second.Ranges)
}

func TestIrregularAxisNeedsClient(t *testing.T) {
	cfg := dailyCubeConfig(t, false)
	_, err := NewTimeAxisBuilder(nil).Build(context.Background(), cfg, "S2L2A")
	var catalogErr *CatalogError
	assert.ErrorAs(t, err, &catalogErr)
}
