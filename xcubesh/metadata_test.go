package xcubesh

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func synthesizedMetadata(t *testing.T, cfg *CubeConfig) (*Metadata, *TimeAxis) {
	t.Helper()
	axis, err := NewTimeAxisBuilder(nil).Build(context.Background(), cfg, cfg.DatasetName())
	assert.Nil(t, err)
	metadata, err := NewMetadataSynthesizer().Synthesize(cfg, axis)
	assert.Nil(t, err)
	return metadata, axis
}

func decodeJSON(t *testing.T, m *Metadata, key string) map[string]any {
	t.Helper()
	raw, ok := m.Get(key)
	assert.True(t, ok, key)
	var doc map[string]any
	assert.Nil(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestMetadataKeys3D(t *testing.T) {
	cfg := dailyCubeConfig(t, true)
	m, axis := synthesizedMetadata(t, cfg)

	assert.Equal(t, 31, axis.Len())
	for _, key := range []string{
		".zgroup", ".zattrs",
		"lon/.zarray", "lon/.zattrs", "lon/0",
		"lat/.zarray", "lat/.zattrs", "lat/0",
		"time/.zarray", "time/.zattrs", "time/0",
		"time_bnds/.zarray", "time_bnds/.zattrs", "time_bnds/0.0",
		"B01/.zarray", "B01/.zattrs",
	} {
		_, ok := m.Get(key)
		assert.True(t, ok, key)
	}

	group := decodeJSON(t, m, ".zgroup")
	assert.Equal(t, float64(2), group["zarr_format"])

	zarray := decodeJSON(t, m, "B01/.zarray")
	assert.Equal(t, []any{float64(31), float64(4000), float64(4000)}, zarray["shape"])
	assert.Equal(t, []any{float64(1), float64(1000), float64(1000)}, zarray["chunks"])
	assert.Equal(t, "<u2", zarray["dtype"])

	attrs := decodeJSON(t, m, "B01/.zattrs")
	assert.Equal(t, []any{"time", "lat", "lon"}, attrs["_ARRAY_DIMENSIONS"])
}

func TestMetadataKeys4D(t *testing.T) {
	t1 := time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2017, 8, 31, 0, 0, 0, 0, time.UTC)
	cfg := mustConfig(t,
		WithDatasetName("S1GRD"),
		WithBbox(10, 50, 11, 51),
		WithSpatialRes(0.00025),
		WithTileSize(1000, 1000),
		WithTimeRange(&t1, &t2),
		WithTimePeriod(24*time.Hour),
		WithFourD(true),
	)
	m, _ := synthesizedMetadata(t, cfg)

	zarray := decodeJSON(t, m, "band_data/.zarray")
	assert.Equal(t, []any{float64(31), float64(4000), float64(4000), float64(2)}, zarray["shape"])
	assert.Equal(t, []any{float64(1), float64(1000), float64(1000), float64(2)}, zarray["chunks"])

	// no per-band variables in the 4D layout
	_, ok := m.Get("VV/.zarray")
	assert.False(t, ok)
}

func TestCoordinateChunks(t *testing.T) {
	cfg := dailyCubeConfig(t, true)
	m, axis := synthesizedMetadata(t, cfg)

	lon, ok := m.Get("lon/0")
	assert.True(t, ok)
	w, h := cfg.Size()
	assert.Equal(t, w*8, len(lon))

	first := math.Float64frombits(binary.LittleEndian.Uint64(lon[:8]))
	assert.InDelta(t, 10+0.5*0.00025, first, 1e-12)

	lat, ok := m.Get("lat/0")
	assert.True(t, ok)
	assert.Equal(t, h*8, len(lat))

	// north-up: first row is the northernmost
	firstLat := math.Float64frombits(binary.LittleEndian.Uint64(lat[:8]))
	bbox := cfg.Bbox()
	assert.InDelta(t, bbox.Max[1]-0.5*0.00025, firstLat, 1e-12)
	lastLat := math.Float64frombits(binary.LittleEndian.Uint64(lat[(h-1)*8:]))
	assert.Less(t, lastLat, firstLat)

	timeChunk, ok := m.Get("time/0")
	assert.True(t, ok)
	assert.Equal(t, axis.Len()*8, len(timeChunk))
	firstTime := math.Float64frombits(binary.LittleEndian.Uint64(timeChunk[:8]))
	assert.Equal(t, axis.Center(0).Sub(unixEpoch).Seconds(), firstTime)

	bnds, ok := m.Get("time_bnds/0.0")
	assert.True(t, ok)
	assert.Equal(t, axis.Len()*2*8, len(bnds))
}

func TestListKeysDeterministic(t *testing.T) {
	cfg := dailyCubeConfig(t, true)
	m1, _ := synthesizedMetadata(t, cfg)
	m2, _ := synthesizedMetadata(t, cfg)
	assert.Equal(t, m1.Keys, m2.Keys)
	assert.Equal(t, ".zgroup", m1.Keys[0])
	assert.Equal(t, ".zattrs", m1.Keys[1])
}
