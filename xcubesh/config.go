package xcubesh

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Resampling selects the interpolation method applied when upsampling or
// downsampling pixel data.
type Resampling string

// Recognized Resampling values.
const (
	ResamplingNearest  Resampling = "NEAREST"
	ResamplingBilinear Resampling = "BILINEAR"
	ResamplingBicubic  Resampling = "BICUBIC"
)

func (r Resampling) valid() bool {
	switch r {
	case ResamplingNearest, ResamplingBilinear, ResamplingBicubic:
		return true
	}
	return false
}

// MosaickingOrder selects how overlapping acquisitions are combined into
// a single mosaic.
type MosaickingOrder string

// Recognized MosaickingOrder values.
const (
	MosaickingMostRecent  MosaickingOrder = "mostRecent"
	MosaickingLeastRecent MosaickingOrder = "leastRecent"
	MosaickingLeastCC     MosaickingOrder = "leastCC"
)

func (m MosaickingOrder) valid() bool {
	switch m {
	case MosaickingMostRecent, MosaickingLeastRecent, MosaickingLeastCC:
		return true
	}
	return false
}

// CubeConfig is an immutable, normalized description of a data cube's
// geometry. Construct one with NewCubeConfig or FromDict; once built, a
// CubeConfig never changes.
type CubeConfig struct {
	catalog *DatasetCatalog

	datasetName string

	// user-facing band fields: nil means "absent" and is reported as
	// such by ToDict, even though resolved* below always carries a
	// concrete value derived from the catalog.
	bandNames       []string
	bandSampleTypes []string
	bandFillValues  []float64
	bandUnits       []string

	resolvedBandNames       []string
	resolvedBandSampleTypes []string
	resolvedBandFillValues  []float64
	resolvedBandUnits       []string

	collectionID string
	hasCollID    bool

	crs string

	x1, y1, x2, y2 float64
	spatialRes     float64
	tileWidth      int
	tileHeight     int
	width          int
	height         int
	numTilesX      int
	numTilesY      int

	t1, t2          time.Time
	timePeriod      *time.Duration
	timeTolerance   *time.Duration
	fourD           bool
	upsampling      Resampling
	downsampling    Resampling
	mosaickingOrder MosaickingOrder
}

// Option configures a CubeConfig under construction.
type Option func(*builder) error

type builder struct {
	datasetName string

	bandNames       []string
	bandSampleTypes any // string or []string
	bandFillValues  any // float64 or []float64
	bandUnits       any // string or []string

	collectionID *string

	crs string

	haveBbox       bool
	x1, y1, x2, y2 float64
	spatialRes     float64
	tileWidth      int
	tileHeight     int

	t1, t2        *time.Time
	timePeriod    *time.Duration
	timeTolerance *time.Duration
	haveTolerance bool

	fourD           bool
	upsampling      Resampling
	downsampling    Resampling
	mosaickingOrder MosaickingOrder

	catalog *DatasetCatalog
}

// WithDatasetName sets the required dataset name.
func WithDatasetName(name string) Option {
	return func(b *builder) error { b.datasetName = name; return nil }
}

// WithBandNames sets an explicit, ordered, duplicate-free band list.
func WithBandNames(names ...string) Option {
	return func(b *builder) error { b.bandNames = names; return nil }
}

// WithBandSampleTypes sets either a single sample type applied to every
// band, or one sample type per band (aligned with WithBandNames).
func WithBandSampleTypes(v ...string) Option {
	return func(b *builder) error {
		if len(v) == 1 {
			b.bandSampleTypes = v[0]
		} else {
			b.bandSampleTypes = v
		}
		return nil
	}
}

// WithBandFillValues sets either a single fill value applied to every
// band, or one fill value per band (aligned with WithBandNames).
func WithBandFillValues(v ...float64) Option {
	return func(b *builder) error {
		if len(v) == 1 {
			b.bandFillValues = v[0]
		} else {
			b.bandFillValues = v
		}
		return nil
	}
}

// WithBandUnits sets either a single unit string applied to every band,
// or one unit per band (aligned with WithBandNames).
func WithBandUnits(v ...string) Option {
	return func(b *builder) error {
		if len(v) == 1 {
			b.bandUnits = v[0]
		} else {
			b.bandUnits = v
		}
		return nil
	}
}

// WithCollectionID sets the BYOC collection id.
func WithCollectionID(id string) Option {
	return func(b *builder) error { b.collectionID = &id; return nil }
}

// WithCRS sets the coordinate reference system, in short or URI form.
func WithCRS(crs string) Option {
	return func(b *builder) error { b.crs = crs; return nil }
}

// WithBbox sets the geographic bounding box x1 < x2, y1 < y2.
func WithBbox(x1, y1, x2, y2 float64) Option {
	return func(b *builder) error {
		b.haveBbox = true
		b.x1, b.y1, b.x2, b.y2 = x1, y1, x2, y2
		return nil
	}
}

// WithGeometry is a legacy alias for WithBbox.
func WithGeometry(x1, y1, x2, y2 float64) Option {
	return WithBbox(x1, y1, x2, y2)
}

// WithSpatialRes sets the spatial resolution, in CRS units per pixel.
func WithSpatialRes(res float64) Option {
	return func(b *builder) error { b.spatialRes = res; return nil }
}

// WithTileSize sets the requested tile size. The effective tile size
// may be adjusted during snapping; see TileSize.
func WithTileSize(tw, th int) Option {
	return func(b *builder) error { b.tileWidth, b.tileHeight = tw, th; return nil }
}

// WithTimeRange sets the inclusive time range. Either bound may be nil:
// a nil t1 defaults to the Unix epoch, a nil t2 to the current date.
func WithTimeRange(t1, t2 *time.Time) Option {
	return func(b *builder) error { b.t1, b.t2 = t1, t2; return nil }
}

// WithTimePeriod selects a regular time axis with the given period.
// Mutually exclusive with WithTimeTolerance.
func WithTimePeriod(period time.Duration) Option {
	return func(b *builder) error { b.timePeriod = &period; return nil }
}

// WithTimeTolerance selects an irregular time axis with the given
// coalescing tolerance. Mutually exclusive with WithTimePeriod.
func WithTimeTolerance(tolerance time.Duration) Option {
	return func(b *builder) error {
		b.timeTolerance = &tolerance
		b.haveTolerance = true
		return nil
	}
}

// WithFourD selects the 4D (single band_data variable) cube layout.
func WithFourD(fourD bool) Option {
	return func(b *builder) error { b.fourD = fourD; return nil }
}

// WithUpsampling sets the resampling method used when enlarging pixels.
func WithUpsampling(r Resampling) Option {
	return func(b *builder) error { b.upsampling = r; return nil }
}

// WithDownsampling sets the resampling method used when shrinking pixels.
func WithDownsampling(r Resampling) Option {
	return func(b *builder) error { b.downsampling = r; return nil }
}

// WithMosaickingOrder sets the mosaicking order for overlapping acquisitions.
func WithMosaickingOrder(m MosaickingOrder) Option {
	return func(b *builder) error { b.mosaickingOrder = m; return nil }
}

// withCatalog overrides the DatasetCatalog consulted during construction.
// Unexported: only FromDict and tests need to inject a non-default one.
func withCatalog(c *DatasetCatalog) Option {
	return func(b *builder) error { b.catalog = c; return nil }
}

var defaultCatalog = NewDatasetCatalog()
var crsRegistry = NewCrsRegistry()

// NewCubeConfig builds and validates a CubeConfig from the given options.
func NewCubeConfig(opts ...Option) (*CubeConfig, error) {
	b := &builder{
		crs:             crsWGS84,
		tileWidth:       DefaultTileSize,
		tileHeight:      DefaultTileSize,
		upsampling:      ResamplingNearest,
		downsampling:    ResamplingNearest,
		mosaickingOrder: MosaickingMostRecent,
		catalog:         defaultCatalog,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b.build()
}

func (b *builder) build() (*CubeConfig, error) {
	if b.datasetName == "" {
		return nil, invalidConfigf("dataset_name is required")
	}
	info, err := b.catalog.Lookup(b.datasetName)
	if err != nil {
		return nil, err
	}

	cfg := &CubeConfig{catalog: b.catalog, datasetName: b.datasetName}

	if b.collectionID != nil {
		cfg.collectionID = *b.collectionID
		cfg.hasCollID = true
	}

	if err := cfg.resolveBands(b, info); err != nil {
		return nil, err
	}

	crs, err := crsRegistry.Canonicalize(b.crs)
	if err != nil {
		return nil, err
	}
	cfg.crs = crs

	if !b.haveBbox {
		return nil, invalidConfigf("bbox is required")
	}
	if b.x1 >= b.x2 || b.y1 >= b.y2 {
		return nil, invalidConfigf("bbox must satisfy x1 < x2 and y1 < y2")
	}
	if b.spatialRes <= 0 {
		return nil, invalidConfigf("spatial_res must be positive")
	}
	if b.tileWidth <= 0 || b.tileHeight <= 0 {
		return nil, invalidConfigf("tile_size must be strictly positive")
	}
	if b.tileWidth > ShMaxImageSize || b.tileHeight > ShMaxImageSize {
		return nil, invalidConfigf("tile_size must not exceed %d pixels", ShMaxImageSize)
	}
	cfg.spatialRes = b.spatialRes
	cfg.x1, cfg.y1 = b.x1, b.y1
	cfg.tileWidth, cfg.tileHeight = b.tileWidth, b.tileHeight

	if err := cfg.snap(b.x2, b.y2); err != nil {
		return nil, err
	}

	cfg.t1 = unixEpoch
	if b.t1 != nil {
		cfg.t1 = b.t1.UTC()
	}
	cfg.t2 = today()
	if b.t2 != nil {
		cfg.t2 = b.t2.UTC()
	}
	if !cfg.t1.Before(cfg.t2) && !cfg.t1.Equal(cfg.t2) {
		return nil, invalidConfigf("time_range requires t1 <= t2")
	}

	if b.timePeriod != nil && b.haveTolerance {
		return nil, invalidConfigf("time_period and time_tolerance are mutually exclusive")
	}
	if b.timePeriod != nil {
		if *b.timePeriod <= 0 {
			return nil, invalidConfigf("time_period must be positive")
		}
		cfg.timePeriod = b.timePeriod
	} else if b.haveTolerance {
		if *b.timeTolerance <= 0 {
			return nil, invalidConfigf("time_tolerance must be positive")
		}
		cfg.timeTolerance = b.timeTolerance
	} else {
		tol := DefaultTimeTolerance
		cfg.timeTolerance = &tol
	}

	cfg.fourD = b.fourD

	if !b.upsampling.valid() {
		return nil, invalidConfigf("invalid upsampling %q", b.upsampling)
	}
	if !b.downsampling.valid() {
		return nil, invalidConfigf("invalid downsampling %q", b.downsampling)
	}
	if !b.mosaickingOrder.valid() {
		return nil, invalidConfigf("invalid mosaicking_order %q", b.mosaickingOrder)
	}
	cfg.upsampling = b.upsampling
	cfg.downsampling = b.downsampling
	cfg.mosaickingOrder = b.mosaickingOrder

	return cfg, nil
}

func (cfg *CubeConfig) resolveBands(b *builder, info DatasetInfo) error {
	defaultNames := make([]string, len(info.Bands))
	for i, bi := range info.Bands {
		defaultNames[i] = bi.Name
	}

	resolvedNames := defaultNames
	if b.bandNames != nil {
		if len(b.bandNames) == 0 {
			return invalidConfigf("band_names, if given, must be non-empty")
		}
		seen := make(map[string]bool, len(b.bandNames))
		for _, n := range b.bandNames {
			if seen[n] {
				return invalidConfigf("band_names contains duplicate %q", n)
			}
			seen[n] = true
		}
		for _, n := range b.bandNames {
			if _, err := cfg.catalog.Band(b.datasetName, n); err != nil {
				return err
			}
		}
		resolvedNames = b.bandNames
		cfg.bandNames = b.bandNames
	}
	cfg.resolvedBandNames = resolvedNames

	lookupBand := func(name string) BandInfo {
		bi, err := cfg.catalog.Band(b.datasetName, name)
		if err != nil {
			return BandInfo{}
		}
		return bi
	}

	sampleTypes := make([]string, len(resolvedNames))
	fillValues := make([]float64, len(resolvedNames))
	units := make([]string, len(resolvedNames))
	for i, name := range resolvedNames {
		bi := lookupBand(name)
		sampleTypes[i], fillValues[i], units[i] = bi.SampleType, bi.FillValue, bi.Units
	}

	if err := applyPerBandOverride(b.bandSampleTypes, resolvedNames, sampleTypes, "band_sample_types"); err != nil {
		return err
	}
	if v, ok := userStrings(b.bandSampleTypes, len(resolvedNames)); ok {
		cfg.bandSampleTypes = v
	}

	if err := applyPerBandFloatOverride(b.bandFillValues, resolvedNames, fillValues, "band_fill_values"); err != nil {
		return err
	}
	if v, ok := userFloats(b.bandFillValues, len(resolvedNames)); ok {
		cfg.bandFillValues = v
	}

	if err := applyPerBandOverride(b.bandUnits, resolvedNames, units, "band_units"); err != nil {
		return err
	}
	if v, ok := userStrings(b.bandUnits, len(resolvedNames)); ok {
		cfg.bandUnits = v
	}

	cfg.resolvedBandSampleTypes = sampleTypes
	cfg.resolvedBandFillValues = fillValues
	cfg.resolvedBandUnits = units
	return nil
}

func applyPerBandOverride(v any, names []string, out []string, field string) error {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		for i := range out {
			out[i] = t
		}
	case []string:
		if len(t) != len(names) {
			return invalidConfigf("%s has %d entries but %d band names", field, len(t), len(names))
		}
		copy(out, t)
	default:
		return invalidConfigf("%s has unsupported type %T", field, v)
	}
	return nil
}

func applyPerBandFloatOverride(v any, names []string, out []float64, field string) error {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		for i := range out {
			out[i] = t
		}
	case []float64:
		if len(t) != len(names) {
			return invalidConfigf("%s has %d entries but %d band names", field, len(t), len(names))
		}
		copy(out, t)
	default:
		return invalidConfigf("%s has unsupported type %T", field, v)
	}
	return nil
}

func userStrings(v any, n int) ([]string, bool) {
	switch t := v.(type) {
	case string:
		out := make([]string, n)
		for i := range out {
			out[i] = t
		}
		return out, true
	case []string:
		return t, true
	}
	return nil, false
}

func userFloats(v any, n int) ([]float64, bool) {
	switch t := v.(type) {
	case float64:
		out := make([]float64, n)
		for i := range out {
			out[i] = t
		}
		return out, true
	case []float64:
		return t, true
	}
	return nil, false
}

// snap adjusts tile_size and grows the bbox so the pixel grid divides
// evenly into tiles, given the user's raw x2, y2 (cfg.x1, cfg.y1,
// cfg.spatialRes, and the requested tile size are already set).
func (cfg *CubeConfig) snap(x2, y2 float64) error {
	w0 := int(math.Round((x2 - cfg.x1) / cfg.spatialRes))
	h0 := int(math.Round((y2 - cfg.y1) / cfg.spatialRes))
	if w0 <= 0 || h0 <= 0 {
		return invalidConfigf("bbox is too small for the given spatial_res")
	}

	tw, th := cfg.tileWidth, cfg.tileHeight
	if tw == 0 {
		tw = DefaultTileSize
	}
	if th == 0 {
		th = DefaultTileSize
	}

	var w, h, numTilesX, numTilesY int
	if w0 < 2*tw || h0 < 2*th {
		tw, th = w0, h0
		w, h = w0, h0
		numTilesX, numTilesY = 1, 1
	} else {
		numTilesX = ceilDiv(w0, tw)
		numTilesY = ceilDiv(h0, th)
		w = numTilesX * tw
		h = numTilesY * th
	}

	cfg.tileWidth, cfg.tileHeight = tw, th
	cfg.width, cfg.height = w, h
	cfg.numTilesX, cfg.numTilesY = numTilesX, numTilesY
	cfg.x2 = cfg.x1 + float64(w)*cfg.spatialRes
	cfg.y2 = cfg.y1 + float64(h)*cfg.spatialRes
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

var unixEpoch = time.Unix(0, 0).UTC()

func today() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// --- accessors ---

// DatasetName returns the dataset name.
func (c *CubeConfig) DatasetName() string { return c.datasetName }

// BandNames returns the user-supplied band list, or nil if the caller
// relied on the dataset's default band list.
func (c *CubeConfig) BandNames() []string { return c.bandNames }

// ResolvedBandNames returns the band list actually used for planning:
// the user-supplied list, or the dataset default when the user supplied
// none.
func (c *CubeConfig) ResolvedBandNames() []string { return c.resolvedBandNames }

// ResolvedBand returns the resolved sample type, fill value, and units
// for a single band.
func (c *CubeConfig) ResolvedBand(name string) (sampleType string, fillValue float64, units string, err error) {
	for i, n := range c.resolvedBandNames {
		if n == name {
			return c.resolvedBandSampleTypes[i], c.resolvedBandFillValues[i], c.resolvedBandUnits[i], nil
		}
	}
	return "", 0, "", &UnknownBandError{DatasetName: c.datasetName, BandName: name}
}

// CollectionID returns the BYOC collection id and whether one was set.
func (c *CubeConfig) CollectionID() (string, bool) { return c.collectionID, c.hasCollID }

// CRS returns the canonical short CRS identifier.
func (c *CubeConfig) CRS() string { return c.crs }

// Bbox returns the snapped bounding box.
func (c *CubeConfig) Bbox() orb.Bound {
	return orb.Bound{Min: orb.Point{c.x1, c.y1}, Max: orb.Point{c.x2, c.y2}}
}

// Geometry is a legacy alias for Bbox.
func (c *CubeConfig) Geometry() orb.Bound { return c.Bbox() }

// SpatialRes returns the spatial resolution.
func (c *CubeConfig) SpatialRes() float64 { return c.spatialRes }

// TileSize returns the (adjusted) tile width and height in pixels.
func (c *CubeConfig) TileSize() (int, int) { return c.tileWidth, c.tileHeight }

// Size returns the cube's width and height in pixels.
func (c *CubeConfig) Size() (int, int) { return c.width, c.height }

// NumTiles returns the number of tiles along x and y.
func (c *CubeConfig) NumTiles() (int, int) { return c.numTilesX, c.numTilesY }

// TimeRange returns the normalized, UTC time range.
func (c *CubeConfig) TimeRange() (time.Time, time.Time) { return c.t1, c.t2 }

// TimePeriod returns the regular time period and whether one is set.
func (c *CubeConfig) TimePeriod() (time.Duration, bool) {
	if c.timePeriod == nil {
		return 0, false
	}
	return *c.timePeriod, true
}

// TimeTolerance returns the coalescing tolerance and whether one is set.
func (c *CubeConfig) TimeTolerance() (time.Duration, bool) {
	if c.timeTolerance == nil {
		return 0, false
	}
	return *c.timeTolerance, true
}

// FourD reports whether the 4D ("band_data") layout is selected.
func (c *CubeConfig) FourD() bool { return c.fourD }

// Upsampling returns the configured upsampling method.
func (c *CubeConfig) Upsampling() Resampling { return c.upsampling }

// Downsampling returns the configured downsampling method.
func (c *CubeConfig) Downsampling() Resampling { return c.downsampling }

// MosaickingOrder returns the configured mosaicking order.
func (c *CubeConfig) MosaickingOrder() MosaickingOrder { return c.mosaickingOrder }

// --- dict (de)serialization ---

// dictKeyOrder is the exact, ordered key set produced by ToDict.
var dictKeyOrder = []string{
	"band_names", "band_sample_types", "band_fill_values", "band_units",
	"collection_id", "crs", "dataset_name", "four_d", "bbox",
	"spatial_res", "upsampling", "downsampling", "mosaicking_order",
	"tile_size", "time_period", "time_range", "time_tolerance",
}

var knownParamNames = map[string]bool{
	"band_names": true, "band_sample_types": true, "band_fill_values": true,
	"band_units": true, "collection_id": true, "crs": true,
	"dataset_name": true, "four_d": true, "bbox": true, "geometry": true,
	"spatial_res": true, "upsampling": true, "downsampling": true,
	"mosaicking_order": true, "tile_size": true, "time_period": true,
	"time_range": true, "time_tolerance": true,
}

// ToDict serializes the config to a map keyed exactly as dictKeyOrder
// (iterate dictKeyOrder, not the map, when order matters).
func (c *CubeConfig) ToDict() map[string]any {
	d := make(map[string]any, len(dictKeyOrder))
	if c.bandNames != nil {
		d["band_names"] = append([]string(nil), c.bandNames...)
	} else {
		d["band_names"] = nil
	}
	d["band_sample_types"] = anySliceOrNil(c.bandSampleTypes)
	d["band_fill_values"] = anyFloatSliceOrNil(c.bandFillValues)
	d["band_units"] = anySliceOrNil(c.bandUnits)
	if c.hasCollID {
		d["collection_id"] = c.collectionID
	} else {
		d["collection_id"] = nil
	}
	d["crs"] = c.crs
	d["dataset_name"] = c.datasetName
	d["four_d"] = c.fourD
	d["bbox"] = []float64{c.x1, c.y1, c.x2, c.y2}
	d["spatial_res"] = c.spatialRes
	d["upsampling"] = string(c.upsampling)
	d["downsampling"] = string(c.downsampling)
	d["mosaicking_order"] = string(c.mosaickingOrder)
	d["tile_size"] = []int{c.tileWidth, c.tileHeight}
	if c.timePeriod != nil {
		d["time_period"] = formatDuration(*c.timePeriod)
	} else {
		d["time_period"] = nil
	}
	d["time_range"] = []string{formatInstant(c.t1), formatInstant(c.t2)}
	if c.timeTolerance != nil {
		d["time_tolerance"] = formatDuration(*c.timeTolerance)
	} else {
		d["time_tolerance"] = nil
	}
	return d
}

func anySliceOrNil(v []string) any {
	if v == nil {
		return nil
	}
	return append([]string(nil), v...)
}

func anyFloatSliceOrNil(v []float64) any {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v...)
}

// FromDict is the inverse of ToDict. It rejects unknown keys with an
// InvalidConfigError listing every unknown name in sorted order.
func FromDict(d map[string]any) (*CubeConfig, error) {
	var unknown []string
	for k := range d {
		if !knownParamNames[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, invalidConfigf("unknown parameter(s): %s", strings.Join(unknown, ", "))
	}

	var opts []Option
	if v, ok := d["dataset_name"].(string); ok {
		opts = append(opts, WithDatasetName(v))
	}
	if v, ok := d["collection_id"]; ok && v != nil {
		s, _ := v.(string)
		opts = append(opts, WithCollectionID(s))
	}
	if v, ok := d["crs"].(string); ok {
		opts = append(opts, WithCRS(v))
	}
	if v, ok := d["band_names"]; ok && v != nil {
		names, err := toStringSlice(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBandNames(names...))
	}
	if v, ok := d["band_sample_types"]; ok && v != nil {
		names, err := toStringSlice(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBandSampleTypes(names...))
	}
	if v, ok := d["band_fill_values"]; ok && v != nil {
		vals, err := toFloatSlice(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBandFillValues(vals...))
	}
	if v, ok := d["band_units"]; ok && v != nil {
		names, err := toStringSlice(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBandUnits(names...))
	}

	bboxVal := d["bbox"]
	if bboxVal == nil {
		bboxVal = d["geometry"]
	}
	if bboxVal != nil {
		coords, err := toFloatSlice(bboxVal)
		if err != nil {
			return nil, err
		}
		if len(coords) != 4 {
			return nil, invalidConfigf("bbox must have exactly 4 coordinates")
		}
		opts = append(opts, WithBbox(coords[0], coords[1], coords[2], coords[3]))
	}

	if v, ok := d["spatial_res"]; ok && v != nil {
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSpatialRes(f))
	}
	if v, ok := d["tile_size"]; ok && v != nil {
		dims, err := toFloatSlice(v)
		if err != nil {
			return nil, err
		}
		if len(dims) != 2 {
			return nil, invalidConfigf("tile_size must have exactly 2 entries")
		}
		opts = append(opts, WithTileSize(int(dims[0]), int(dims[1])))
	}
	if v, ok := d["time_range"]; ok && v != nil {
		items, ok := v.([]any)
		if !ok {
			if ss, ok2 := v.([]string); ok2 {
				items = make([]any, len(ss))
				for i, s := range ss {
					items[i] = s
				}
			}
		}
		if len(items) != 2 {
			return nil, invalidConfigf("time_range must have exactly 2 entries")
		}
		t1, err := toInstantPtr(items[0])
		if err != nil {
			return nil, err
		}
		t2, err := toInstantPtr(items[1])
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTimeRange(t1, t2))
	}
	if v, ok := d["time_period"]; ok && v != nil {
		dur, err := toDuration(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTimePeriod(dur))
	}
	if v, ok := d["time_tolerance"]; ok && v != nil {
		dur, err := toDuration(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTimeTolerance(dur))
	}
	if v, ok := d["four_d"].(bool); ok {
		opts = append(opts, WithFourD(v))
	}
	if v, ok := d["upsampling"].(string); ok {
		opts = append(opts, WithUpsampling(Resampling(v)))
	}
	if v, ok := d["downsampling"].(string); ok {
		opts = append(opts, WithDownsampling(Resampling(v)))
	}
	if v, ok := d["mosaicking_order"].(string); ok {
		opts = append(opts, WithMosaickingOrder(MosaickingOrder(v)))
	}

	return NewCubeConfig(opts...)
}

func toStringSlice(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, invalidConfigf("expected string, got %T", e)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, invalidConfigf("expected string or []string, got %T", v)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	}
	return 0, invalidConfigf("expected a number, got %T", v)
}

func toFloatSlice(v any) ([]float64, error) {
	switch t := v.(type) {
	case []float64:
		return t, nil
	case float64:
		return []float64{t}, nil
	case []int:
		out := make([]float64, len(t))
		for i, e := range t {
			out[i] = float64(e)
		}
		return out, nil
	case int:
		return []float64{float64(t)}, nil
	case []any:
		out := make([]float64, len(t))
		for i, e := range t {
			f, err := toFloat(e)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, invalidConfigf("expected a number or list of numbers, got %T", v)
}

func toInstantPtr(v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case time.Time:
		tt := t.UTC()
		return &tt, nil
	case string:
		tt, err := parseInstant(t)
		if err != nil {
			return nil, err
		}
		return &tt, nil
	}
	return nil, invalidConfigf("expected a timestamp string, got %T", v)
}

func toDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		return parseDuration(t)
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	}
	return 0, invalidConfigf("expected a duration, got %T", v)
}

var isoInstantFormats = []string{
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseInstant(s string) (time.Time, error) {
	for _, layout := range isoInstantFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalidConfigf("invalid timestamp %q", s)
}

func formatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05+00:00")
}

var durationPattern = regexp.MustCompile(`^(\d+) days? (\d{2}):(\d{2}):(\d{2})$`)

// formatDuration renders a duration in the "D days HH:MM:SS" wire form
// used for serialized time_period and time_tolerance values.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	days := int64(d / (24 * time.Hour))
	rem := d - time.Duration(days)*24*time.Hour
	h := int64(rem / time.Hour)
	rem -= time.Duration(h) * time.Hour
	m := int64(rem / time.Minute)
	rem -= time.Duration(m) * time.Minute
	s := int64(rem / time.Second)
	return fmt.Sprintf("%d days %02d:%02d:%02d", days, h, m, s)
}

func parseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, invalidConfigf("invalid duration %q", s)
	}
	days, _ := strconv.ParseInt(m[1], 10, 64)
	h, _ := strconv.ParseInt(m[2], 10, 64)
	mi, _ := strconv.ParseInt(m[3], 10, 64)
	sec, _ := strconv.ParseInt(m[4], 10, 64)
	return time.Duration(days)*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(sec)*time.Second, nil
}
