package xcubesh

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
)

// TimeRange is an inclusive (start, end) pair of instants, used for
// time_bnds entries.
type TimeRange struct {
	Start, End time.Time
}

// TimeAxis is the time coordinate of a cube: either a regular axis of
// evenly spaced centers, or an irregular axis of coalesced acquisition
// ranges.
type TimeAxis struct {
	Regular bool

	// Regular form.
	T0   time.Time
	Step time.Duration
	N    int

	// Irregular form.
	Ranges []TimeRange
}

// Len returns the number of coordinate entries on the axis.
func (a *TimeAxis) Len() int {
	if a.Regular {
		return a.N
	}
	return len(a.Ranges)
}

// Center returns the coordinate value (range midpoint) at index i.
func (a *TimeAxis) Center(i int) time.Time {
	if a.Regular {
		return a.T0.Add(time.Duration(i)*a.Step + a.Step/2)
	}
	r := a.Ranges[i]
	return r.Start.Add(r.End.Sub(r.Start) / 2)
}

// Bounds returns time_bnds[i], the (start, end) pair backing index i.
func (a *TimeAxis) Bounds(i int) TimeRange {
	if a.Regular {
		start := a.T0.Add(time.Duration(i) * a.Step)
		return TimeRange{Start: start, End: start.Add(a.Step)}
	}
	return a.Ranges[i]
}

// Feature is a single catalog record: an acquisition footprint carrying
// a date and time of capture. Geometry is omitted; the core only needs
// the timestamp to build the time axis.
type Feature struct {
	Date string // yyyy-mm-dd
	Time string // hh:mm:ss
}

// Instant parses the feature's date and time into a single UTC instant.
func (f Feature) Instant() (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", f.Date+" "+f.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid feature timestamp %q %q: %w", f.Date, f.Time, err)
	}
	return t.UTC(), nil
}

// CatalogClient is the narrow collaborator TimeAxisBuilder depends on to
// page through the tile-feature catalog for irregular cubes. The core
// owns no socket; a concrete implementation lives outside this package.
type CatalogClient interface {
	FetchFeatures(ctx context.Context, collectionID string, bbox orb.Bound, timeRange TimeRange, limit, offset int) ([]Feature, error)
}

// TimeAxisCache persists irregular-axis query results so repeated opens
// over the same region and time range skip the catalog round trip. A nil
// cache means no persistence.
type TimeAxisCache interface {
	Lookup(collectionID string, bbox orb.Bound, timeRange TimeRange) ([]TimeRange, bool)
	Store(collectionID string, bbox orb.Bound, timeRange TimeRange, ranges []TimeRange) error
}

// TimeAxisBuilder computes a CubeConfig's time axis: a regular axis when
// time_period is present, or an irregular axis derived from the catalog
// otherwise.
type TimeAxisBuilder struct {
	client CatalogClient
	cache  TimeAxisCache
}

// NewTimeAxisBuilder returns a TimeAxisBuilder that queries the catalog
// through client for irregular cubes. client may be nil if only regular
// cubes will ever be built.
func NewTimeAxisBuilder(client CatalogClient) *TimeAxisBuilder {
	return &TimeAxisBuilder{client: client}
}

// NewTimeAxisBuilderWithCache is NewTimeAxisBuilder plus a TimeAxisCache
// consulted before, and updated after, each irregular-axis catalog query.
func NewTimeAxisBuilderWithCache(client CatalogClient, cache TimeAxisCache) *TimeAxisBuilder {
	return &TimeAxisBuilder{client: client, cache: cache}
}

// Build computes the time axis for cfg, querying the catalog via
// collectionID (the dataset name, or the BYOC collection id when set) if
// cfg selects the irregular form.
func (b *TimeAxisBuilder) Build(ctx context.Context, cfg *CubeConfig, collectionID string) (*TimeAxis, error) {
	if period, ok := cfg.TimePeriod(); ok {
		return buildRegularAxis(cfg, period), nil
	}
	return b.buildIrregularAxis(ctx, cfg, collectionID)
}

func buildRegularAxis(cfg *CubeConfig, period time.Duration) *TimeAxis {
	t1, t2 := cfg.TimeRange()
	span := t2.Sub(t1)
	n := int(span / period)
	if span%period == 0 {
		n++
	}
	if n < 0 {
		n = 0
	}
	return &TimeAxis{Regular: true, T0: t1, Step: period, N: n}
}

func (b *TimeAxisBuilder) buildIrregularAxis(ctx context.Context, cfg *CubeConfig, collectionID string) (*TimeAxis, error) {
	if b.client == nil {
		return nil, &CatalogError{Err: fmt.Errorf("no catalog client configured for irregular time axis")}
	}
	t1, t2 := cfg.TimeRange()
	timeRange := TimeRange{Start: t1, End: t2}
	bbox := cfg.Bbox()

	if b.cache != nil {
		if ranges, ok := b.cache.Lookup(collectionID, bbox, timeRange); ok {
			return &TimeAxis{Regular: false, Ranges: ranges}, nil
		}
	}

	var instants []time.Time
	offset := 0
	for {
		features, err := b.client.FetchFeatures(ctx, collectionID, bbox, timeRange, ShCatalogFeatureLimit, offset)
		if err != nil {
			return nil, &CatalogError{Err: err}
		}
		for _, f := range features {
			inst, err := f.Instant()
			if err != nil {
				return nil, &CatalogError{Err: err}
			}
			instants = append(instants, inst)
		}
		if len(features) < ShCatalogFeatureLimit {
			break
		}
		offset += ShCatalogFeatureLimit
	}

	sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })

	var ranges []TimeRange
	var curDay string
	for _, inst := range instants {
		day := inst.Format("2006-01-02")
		if day == curDay {
			ranges[len(ranges)-1].End = inst
			continue
		}
		ranges = append(ranges, TimeRange{Start: inst, End: inst})
		curDay = day
	}

	if b.cache != nil {
		if err := b.cache.Store(collectionID, bbox, timeRange, ranges); err != nil {
			return nil, &CatalogError{Err: err}
		}
	}

	return &TimeAxis{Regular: false, Ranges: ranges}, nil
}
