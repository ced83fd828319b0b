package xcubesh

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// timeUnits is the CF-style units string used to encode the time and
// time_bnds coordinate arrays as float64 seconds.
const timeUnits = "seconds since 1970-01-01T00:00:00Z"

// Metadata is the full set of synthesized, on-disk-layout-compatible
// documents and eagerly materialized coordinate chunks for a cube. It is
// built once, during store open, and is read-only thereafter.
type Metadata struct {
	// Keys is the deterministic, ordered list of every key Metadata
	// carries (documents and coordinate chunks combined).
	Keys []string
	docs map[string][]byte
}

// Get returns the bytes for a synthesized key, and whether it exists.
func (m *Metadata) Get(key string) ([]byte, bool) {
	b, ok := m.docs[key]
	return b, ok
}

// MetadataSynthesizer produces the `.zgroup`, `.zattrs`, `.zarray` and
// coordinate-array documents describing a cube's shape, plus the
// coordinate arrays' chunk bytes (computed eagerly from cfg, never
// fetched from the provider).
type MetadataSynthesizer struct{}

// NewMetadataSynthesizer returns a MetadataSynthesizer. It carries no
// state.
func NewMetadataSynthesizer() *MetadataSynthesizer { return &MetadataSynthesizer{} }

// Synthesize builds the full Metadata document set for cfg and its
// already-computed time axis.
func (MetadataSynthesizer) Synthesize(cfg *CubeConfig, axis *TimeAxis) (*Metadata, error) {
	w, h := cfg.Size()
	tw, th := cfg.TileSize()
	nT := axis.Len()
	bandNames := cfg.ResolvedBandNames()

	m := &Metadata{docs: make(map[string][]byte)}
	add := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("synthesize %s: %w", key, err)
		}
		m.docs[key] = b
		m.Keys = append(m.Keys, key)
		return nil
	}
	addRaw := func(key string, b []byte) {
		m.docs[key] = b
		m.Keys = append(m.Keys, key)
	}

	if err := add(".zgroup", map[string]any{"zarr_format": 2}); err != nil {
		return nil, err
	}

	bbox := cfg.Bbox()
	uri, err := crsRegistry.URIOf(cfg.CRS())
	if err != nil {
		return nil, err
	}
	t1, t2 := cfg.TimeRange()
	globalAttrs := map[string]any{
		"Conventions": "CF-1.7",
		"crs":         cfg.CRS(),
		"crs_wkt":     uri,
		"bbox":        []float64{bbox.Min[0], bbox.Min[1], bbox.Max[0], bbox.Max[1]},
		"title":       cfg.DatasetName() + " data cube",
		"history":     "synthesized on demand by xcubesh",
	}
	globalAttrs["time_coverage_start"] = formatInstant(t1)
	globalAttrs["time_coverage_end"] = formatInstant(t2)
	if err := add(".zattrs", globalAttrs); err != nil {
		return nil, err
	}

	// lon
	lonValues := make([]float64, w)
	for i := 0; i < w; i++ {
		lonValues[i] = bbox.Min[0] + (float64(i)+0.5)*cfg.SpatialRes()
	}
	if err := add("lon/.zarray", zarrayDoc([]int{w}, []int{w}, "<f8")); err != nil {
		return nil, err
	}
	if err := add("lon/.zattrs", map[string]any{
		"_ARRAY_DIMENSIONS": []string{"lon"},
		"standard_name":     "longitude",
		"units":             "degrees_east",
	}); err != nil {
		return nil, err
	}
	addRaw("lon/0", encodeFloat64LE(lonValues))

	// lat, north-up: row 0 is the northernmost row.
	latValues := make([]float64, h)
	for j := 0; j < h; j++ {
		latValues[j] = bbox.Max[1] - (float64(j)+0.5)*cfg.SpatialRes()
	}
	if err := add("lat/.zarray", zarrayDoc([]int{h}, []int{h}, "<f8")); err != nil {
		return nil, err
	}
	if err := add("lat/.zattrs", map[string]any{
		"_ARRAY_DIMENSIONS": []string{"lat"},
		"standard_name":     "latitude",
		"units":             "degrees_north",
	}); err != nil {
		return nil, err
	}
	addRaw("lat/0", encodeFloat64LE(latValues))

	// time
	timeValues := make([]float64, nT)
	timeBndsValues := make([]float64, nT*2)
	for i := 0; i < nT; i++ {
		timeValues[i] = axis.Center(i).Sub(unixEpoch).Seconds()
		b := axis.Bounds(i)
		timeBndsValues[2*i] = b.Start.Sub(unixEpoch).Seconds()
		timeBndsValues[2*i+1] = b.End.Sub(unixEpoch).Seconds()
	}
	if err := add("time/.zarray", zarrayDoc([]int{nT}, []int{nT}, "<f8")); err != nil {
		return nil, err
	}
	if err := add("time/.zattrs", map[string]any{
		"_ARRAY_DIMENSIONS": []string{"time"},
		"standard_name":     "time",
		"units":             timeUnits,
		"bounds":            "time_bnds",
	}); err != nil {
		return nil, err
	}
	addRaw("time/0", encodeFloat64LE(timeValues))

	if err := add("time_bnds/.zarray", zarrayDoc([]int{nT, 2}, []int{nT, 2}, "<f8")); err != nil {
		return nil, err
	}
	if err := add("time_bnds/.zattrs", map[string]any{
		"_ARRAY_DIMENSIONS": []string{"time", "bnds"},
		"units":             timeUnits,
	}); err != nil {
		return nil, err
	}
	addRaw("time_bnds/0.0", encodeFloat64LE(timeBndsValues))

	// data variables
	if cfg.FourD() {
		nB := len(bandNames)
		if err := add(BandDataArrayName+"/.zarray", zarrayDoc(
			[]int{nT, h, w, nB}, []int{1, th, tw, nB}, "<f4",
		)); err != nil {
			return nil, err
		}
		if err := add(BandDataArrayName+"/.zattrs", map[string]any{
			"_ARRAY_DIMENSIONS": []string{"time", "lat", "lon", "band"},
			"band_names":        bandNames,
		}); err != nil {
			return nil, err
		}
	} else {
		for _, band := range bandNames {
			sampleType, fillValue, units, err := cfg.ResolvedBand(band)
			if err != nil {
				return nil, err
			}
			if err := add(band+"/.zarray", zarrayDocWithFill(
				[]int{nT, h, w}, []int{1, th, tw}, zarrDtype(sampleType), fillValue,
			)); err != nil {
				return nil, err
			}
			if err := add(band+"/.zattrs", map[string]any{
				"_ARRAY_DIMENSIONS": []string{"time", "lat", "lon"},
				"units":             units,
				"sample_type":       sampleType,
			}); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func zarrayDoc(shape, chunks []int, dtype string) map[string]any {
	return zarrayDocWithFill(shape, chunks, dtype, 0)
}

func zarrayDocWithFill(shape, chunks []int, dtype string, fillValue float64) map[string]any {
	return map[string]any{
		"zarr_format": 2,
		"shape":       shape,
		"chunks":      chunks,
		"dtype":       dtype,
		"compressor":  nil,
		"filters":     nil,
		"order":       "C",
		"fill_value":  fillValue,
	}
}

// zarrDtype maps a provider sample type name to a zarr/numpy dtype
// string.
func zarrDtype(sampleType string) string {
	switch sampleType {
	case "uint8":
		return "|u1"
	case "int8":
		return "|i1"
	case "uint16":
		return "<u2"
	case "int16":
		return "<i2"
	case "uint32":
		return "<u4"
	case "int32":
		return "<i4"
	case "float32":
		return "<f4"
	case "float64":
		return "<f8"
	default:
		return "<f4"
	}
}

func encodeFloat64LE(values []float64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}
