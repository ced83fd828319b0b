package xcubesh

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

// mockTileClient answers every request with a correctly shaped body of
// zeros, unless a per-test hook overrides the response.
type mockTileClient struct {
	mu       sync.Mutex
	requests []TileRequest
	respond  func(req TileRequest) (TileResponse, error)
}

func (c *mockTileClient) FetchTile(_ context.Context, req TileRequest) (TileResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.respond != nil {
		return c.respond(req)
	}
	body := make([]byte, req.Width*req.Height*req.NumComponents*BytesPerSample(req.SampleTypes[0]))
	return TileResponse{
		Width:      req.Width,
		Height:     req.Height,
		Components: req.NumComponents,
		SampleType: req.SampleTypes[0],
		Body:       body,
	}, nil
}

func smallCubeConfig(t *testing.T) *CubeConfig {
	t.Helper()
	t1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2019, 1, 4, 0, 0, 0, 0, time.UTC)
	return mustConfig(t,
		WithDatasetName("S1GRD"),
		WithBandNames("VV"),
		WithBbox(10, 50, 10.8, 50.8),
		WithSpatialRes(0.001),
		WithTileSize(200, 200),
		WithTimeRange(&t1, &t2),
		WithTimePeriod(24*time.Hour),
	)
}

func TestChunkKeyCoverage(t *testing.T) {
	cfg := smallCubeConfig(t)
	nx, ny := cfg.NumTiles()
	assert.Equal(t, 4, nx)
	assert.Equal(t, 4, ny)

	var records []ObserverRecord
	tracker := NewCoverageTracker(nx, ny)
	observer := func(rec ObserverRecord) {
		records = append(records, rec)
		tracker.Observe(rec)
	}

	client := &mockTileClient{}
	store, err := Open(context.Background(), cfg, nil, client, observer)
	assert.Nil(t, err)

	// one full time slice touches the whole Cartesian product of tiles
	ctx := context.Background()
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			key := fmt.Sprintf("VV/0.%d.%d", y, x)
			bytes, err := store.Get(ctx, key)
			assert.Nil(t, err)
			assert.Equal(t, 200*200*4, len(bytes))
		}
	}

	assert.Equal(t, nx*ny, len(records))
	assert.Equal(t, uint64(nx*ny), tracker.Cardinality())
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			assert.True(t, tracker.Contains(0, y, x))
		}
	}
}

func TestColumnCoverage(t *testing.T) {
	cfg := smallCubeConfig(t)

	var records []ObserverRecord
	client := &mockTileClient{}
	store, err := Open(context.Background(), cfg, nil, client, func(rec ObserverRecord) {
		records = append(records, rec)
	})
	assert.Nil(t, err)

	nT := store.TimeAxis().Len()
	assert.Equal(t, 4, nT)

	ctx := context.Background()
	for ti := 0; ti < nT; ti++ {
		_, err := store.Get(ctx, fmt.Sprintf("VV/%d.1.2", ti))
		assert.Nil(t, err)
	}

	assert.Equal(t, nT, len(records))
	for _, rec := range records {
		assert.Equal(t, 1, rec.ChunkIndex.Y)
		assert.Equal(t, 2, rec.ChunkIndex.X)
	}
}

func TestObserverRecordContents(t *testing.T) {
	cfg := smallCubeConfig(t)

	var records []ObserverRecord
	client := &mockTileClient{}
	store, err := Open(context.Background(), cfg, nil, client, func(rec ObserverRecord) {
		records = append(records, rec)
	})
	assert.Nil(t, err)

	_, err = store.Get(context.Background(), "VV/2.0.0")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(records))

	rec := records[0]
	assert.Equal(t, "VV", rec.Variable)
	assert.Equal(t, 2, rec.ChunkIndex.T)
	bbox := cfg.Bbox()
	assert.InDelta(t, bbox.Min[0], rec.Bbox.Min[0], 1e-9)
	assert.InDelta(t, bbox.Max[1], rec.Bbox.Max[1], 1e-9)
	assert.Equal(t, store.TimeAxis().Bounds(2), rec.TimeRange)
	assert.Equal(t, []string{"VV"}, rec.Request.Bands)
}

func TestMetadataGetsDoNotObserve(t *testing.T) {
	cfg := smallCubeConfig(t)

	observed := 0
	client := &mockTileClient{}
	store, err := Open(context.Background(), cfg, nil, client, func(ObserverRecord) { observed++ })
	assert.Nil(t, err)

	ctx := context.Background()
	for _, key := range store.ListKeys() {
		assert.True(t, store.Contains(key))
		_, err := store.Get(ctx, key)
		assert.Nil(t, err)
	}
	assert.Equal(t, 0, observed)
	assert.Equal(t, 0, len(client.requests))
}

func TestKeyNotFound(t *testing.T) {
	cfg := smallCubeConfig(t)
	store, err := Open(context.Background(), cfg, nil, &mockTileClient{}, nil)
	assert.Nil(t, err)

	var notFound *KeyNotFoundError
	for _, key := range []string{"nonsense", "VV/9.0.0", "VV/0.9.0", "VV/0.0.9", ".zmetadata"} {
		_, err := store.Get(context.Background(), key)
		assert.ErrorAs(t, err, &notFound, key)
		assert.False(t, store.Contains(key), key)
	}
}

func TestEmptyTileSubstitutesFillValue(t *testing.T) {
	cfg := smallCubeConfig(t)

	observed := 0
	client := &mockTileClient{respond: func(req TileRequest) (TileResponse, error) {
		return TileResponse{
			Width: req.Width, Height: req.Height,
			Components: req.NumComponents, SampleType: req.SampleTypes[0],
		}, nil
	}}
	store, err := Open(context.Background(), cfg, nil, client, func(ObserverRecord) { observed++ })
	assert.Nil(t, err)

	bytes, err := store.Get(context.Background(), "VV/0.0.0")
	assert.Nil(t, err)
	assert.Equal(t, 200*200*4, len(bytes))

	// every sample is the configured fill value
	fill := math.Float32frombits(binary.LittleEndian.Uint32(bytes[:4]))
	assert.Equal(t, float32(0), fill)

	// an empty-tile fetch is still a successful fetch
	assert.Equal(t, 1, observed)
}

func TestTileShapeMismatchSurfaces(t *testing.T) {
	cfg := smallCubeConfig(t)

	observed := 0
	client := &mockTileClient{respond: func(req TileRequest) (TileResponse, error) {
		body := make([]byte, 100*100*4)
		return TileResponse{Width: 100, Height: 100, Components: 1, SampleType: "float32", Body: body}, nil
	}}
	store, err := Open(context.Background(), cfg, nil, client, func(ObserverRecord) { observed++ })
	assert.Nil(t, err)

	_, err = store.Get(context.Background(), "VV/0.0.0")
	var mismatch *TileShapeMismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 0, observed)
}

func TestProviderErrorSurfaces(t *testing.T) {
	cfg := smallCubeConfig(t)

	client := &mockTileClient{respond: func(TileRequest) (TileResponse, error) {
		return TileResponse{}, errors.New("boom")
	}}
	store, err := Open(context.Background(), cfg, nil, client, nil)
	assert.Nil(t, err)

	_, err = store.Get(context.Background(), "VV/0.0.0")
	var provider *ProviderError
	assert.ErrorAs(t, err, &provider)
}

func TestConcurrentGets(t *testing.T) {
	cfg := smallCubeConfig(t)
	nx, ny := cfg.NumTiles()

	tracker := NewCoverageTracker(nx, ny)
	store, err := Open(context.Background(), cfg, nil, &mockTileClient{}, tracker.Observe)
	assert.Nil(t, err)

	g, ctx := errgroup.WithContext(context.Background())
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			key := fmt.Sprintf("VV/0.%d.%d", y, x)
			g.Go(func() error {
				_, err := store.Get(ctx, key)
				return err
			})
		}
	}
	assert.Nil(t, g.Wait())
	assert.Equal(t, uint64(nx*ny), tracker.Cardinality())
}
