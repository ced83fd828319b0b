package xserver

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dcs4cop/xcube-sh/xcubesh"
)

type staticTileClient struct{}

func (staticTileClient) FetchTile(_ context.Context, req xcubesh.TileRequest) (xcubesh.TileResponse, error) {
	body := make([]byte, req.Width*req.Height*req.NumComponents*xcubesh.BytesPerSample(req.SampleTypes[0]))
	return xcubesh.TileResponse{
		Width:      req.Width,
		Height:     req.Height,
		Components: req.NumComponents,
		SampleType: req.SampleTypes[0],
		Body:       body,
	}, nil
}

func testStore(t *testing.T) *xcubesh.VirtualStore {
	t.Helper()
	t1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)
	cfg, err := xcubesh.NewCubeConfig(
		xcubesh.WithDatasetName("S1GRD"),
		xcubesh.WithBandNames("VV"),
		xcubesh.WithBbox(10, 50, 10.2, 50.2),
		xcubesh.WithSpatialRes(0.001),
		xcubesh.WithTileSize(100, 100),
		xcubesh.WithTimeRange(&t1, &t2),
		xcubesh.WithTimePeriod(24*time.Hour),
	)
	assert.Nil(t, err)
	store, err := xcubesh.Open(context.Background(), cfg, nil, staticTileClient{}, nil)
	assert.Nil(t, err)
	return store
}

func TestServerGet(t *testing.T) {
	server := NewServer(testStore(t), log.New(io.Discard, "", 0), "")
	ctx := context.Background()

	status, headers, body := server.Get(ctx, "/.zgroup")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", headers["Content-Type"])
	assert.Contains(t, string(body), "zarr_format")

	status, headers, body = server.Get(ctx, "/VV/0.0.0")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/octet-stream", headers["Content-Type"])
	assert.Equal(t, 100*100*4, len(body))

	status, _, _ = server.Get(ctx, "/nope")
	assert.Equal(t, http.StatusNotFound, status)

	status, _, body = server.Get(ctx, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))
}

func TestServerHandler(t *testing.T) {
	server := NewServer(testStore(t), log.New(io.Discard, "", 0), "*")
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lon/0", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lon/0", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/VV/9.9.9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
