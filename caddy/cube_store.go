// Package caddy embeds a cube store in a Caddy deployment: the
// cube_store directive serves a cube's metadata and chunk keys from the
// route it is mounted on.
package caddy

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"
	"github.com/caddyserver/caddy/v2/caddyconfig/httpcaddyfile"
	"github.com/caddyserver/caddy/v2/modules/caddyhttp"
	"go.uber.org/zap"

	"github.com/dcs4cop/xcube-sh/xcubesh"
	"github.com/dcs4cop/xcube-sh/xcubesh/shclient"
	"github.com/dcs4cop/xcube-sh/xcubesh/xcache"
)

func init() {
	caddy.RegisterModule(Middleware{})
	httpcaddyfile.RegisterHandlerDirective("cube_store", parseCaddyfile)
}

// Middleware serves one cube's key/value surface: synthesized metadata
// documents plus lazily fetched chunk bytes.
type Middleware struct {
	Dataset    string `json:"dataset"`
	Bbox       string `json:"bbox"`        // "x1,y1,x2,y2"
	SpatialRes string `json:"spatial_res"` // CRS units per pixel
	TimeStart  string `json:"time_start"`  // ISO date; empty means epoch
	TimeEnd    string `json:"time_end"`    // ISO date; empty means today
	TimePeriod string `json:"time_period"` // e.g. "24h"; empty means irregular axis
	CacheSize  int    `json:"cache_size"`  // chunk cache bound, in MB

	logger *zap.Logger
	store  xcubesh.KeyValueStore
}

// CaddyModule returns the Caddy module information.
func (Middleware) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID:  "http.handlers.cube_store",
		New: func() caddy.Module { return new(Middleware) },
	}
}

func (m *Middleware) Provision(ctx caddy.Context) error {
	m.logger = ctx.Logger()

	opts, err := m.configOptions()
	if err != nil {
		return err
	}
	cfg, err := xcubesh.NewCubeConfig(opts...)
	if err != nil {
		return err
	}

	creds := shclient.CredentialsFromEnv()
	httpClient := shclient.NewHTTPClient(context.Background(), creds, "")
	catalogClient := shclient.NewHTTPCatalogClient("", httpClient)
	tileClient := shclient.NewHTTPTileClient("", httpClient)

	store, err := xcubesh.Open(context.Background(), cfg, catalogClient, tileClient, nil)
	if err != nil {
		return err
	}
	m.store = xcache.NewLRUCache(store, m.CacheSize*1000*1000)
	return nil
}

func (m *Middleware) configOptions() ([]xcubesh.Option, error) {
	coords := strings.Split(m.Bbox, ",")
	if len(coords) != 4 {
		return nil, fmt.Errorf("bbox must be x1,y1,x2,y2")
	}
	bbox := make([]float64, 4)
	for i, c := range coords {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox coordinate %q: %w", c, err)
		}
		bbox[i] = v
	}
	res, err := strconv.ParseFloat(m.SpatialRes, 64)
	if err != nil {
		return nil, fmt.Errorf("spatial_res %q: %w", m.SpatialRes, err)
	}

	opts := []xcubesh.Option{
		xcubesh.WithDatasetName(m.Dataset),
		xcubesh.WithBbox(bbox[0], bbox[1], bbox[2], bbox[3]),
		xcubesh.WithSpatialRes(res),
	}

	var t1, t2 *time.Time
	if m.TimeStart != "" {
		t, err := time.Parse("2006-01-02", m.TimeStart)
		if err != nil {
			return nil, fmt.Errorf("time_start %q: %w", m.TimeStart, err)
		}
		t1 = &t
	}
	if m.TimeEnd != "" {
		t, err := time.Parse("2006-01-02", m.TimeEnd)
		if err != nil {
			return nil, fmt.Errorf("time_end %q: %w", m.TimeEnd, err)
		}
		t2 = &t
	}
	if t1 != nil || t2 != nil {
		opts = append(opts, xcubesh.WithTimeRange(t1, t2))
	}
	if m.TimePeriod != "" {
		period, err := time.ParseDuration(m.TimePeriod)
		if err != nil {
			return nil, fmt.Errorf("time_period %q: %w", m.TimePeriod, err)
		}
		opts = append(opts, xcubesh.WithTimePeriod(period))
	}
	return opts, nil
}

func (m *Middleware) Validate() error {
	if m.Dataset == "" {
		return fmt.Errorf("no dataset")
	}
	if m.Bbox == "" {
		return fmt.Errorf("no bbox")
	}
	if m.SpatialRes == "" {
		return fmt.Errorf("no spatial_res")
	}
	if m.CacheSize <= 0 {
		m.CacheSize = 64
	}
	return nil
}

func (m Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request, next caddyhttp.Handler) error {
	start := time.Now()
	key := strings.TrimPrefix(r.URL.Path, "/")
	body, err := m.store.Get(r.Context(), key)
	statusCode := http.StatusOK
	if err != nil {
		if _, ok := err.(*xcubesh.KeyNotFoundError); ok {
			statusCode = http.StatusNotFound
		} else {
			statusCode = http.StatusInternalServerError
		}
		w.WriteHeader(statusCode)
	} else {
		w.WriteHeader(statusCode)
		w.Write(body)
	}
	m.logger.Info("response", zap.Int("status", statusCode), zap.String("path", r.URL.Path), zap.Duration("duration", time.Since(start)))

	return next.ServeHTTP(w, r)
}

func (m *Middleware) UnmarshalCaddyfile(d *caddyfile.Dispenser) error {
	for d.Next() {
		for nesting := d.Nesting(); d.NextBlock(nesting); {
			switch d.Val() {
			case "dataset":
				if !d.Args(&m.Dataset) {
					return d.ArgErr()
				}
			case "bbox":
				if !d.Args(&m.Bbox) {
					return d.ArgErr()
				}
			case "spatial_res":
				if !d.Args(&m.SpatialRes) {
					return d.ArgErr()
				}
			case "time_start":
				if !d.Args(&m.TimeStart) {
					return d.ArgErr()
				}
			case "time_end":
				if !d.Args(&m.TimeEnd) {
					return d.ArgErr()
				}
			case "time_period":
				if !d.Args(&m.TimePeriod) {
					return d.ArgErr()
				}
			case "cache_size":
				var cacheSize string
				if !d.Args(&cacheSize) {
					return d.ArgErr()
				}
				num, err := strconv.Atoi(cacheSize)
				if err != nil {
					return d.ArgErr()
				}
				m.CacheSize = num
			}
		}
	}
	return nil
}

func parseCaddyfile(h httpcaddyfile.Helper) (caddyhttp.MiddlewareHandler, error) {
	var m Middleware
	err := m.UnmarshalCaddyfile(h.Dispenser)
	return m, err
}

var (
	_ caddy.Provisioner           = (*Middleware)(nil)
	_ caddy.Validator             = (*Middleware)(nil)
	_ caddyhttp.MiddlewareHandler = (*Middleware)(nil)
	_ caddyfile.Unmarshaler       = (*Middleware)(nil)
)
