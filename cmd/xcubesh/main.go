package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
	"golang.org/x/sync/errgroup"

	"github.com/dcs4cop/xcube-sh/xcubesh"
	"github.com/dcs4cop/xcube-sh/xcubesh/shclient"
	"github.com/dcs4cop/xcube-sh/xcubesh/xcache"
	"github.com/dcs4cop/xcube-sh/xcubesh/xserver"
)

type cubeFlags struct {
	Dataset    string        `required:"" help:"Dataset name, e.g. S2L2A."`
	Bbox       []float64     `required:"" help:"Bounding box x1,y1,x2,y2."`
	SpatialRes float64       `required:"" help:"Spatial resolution in CRS units per pixel."`
	Crs        string        `default:"WGS84" help:"CRS short id or URI."`
	Bands      []string      `help:"Band names; dataset default when omitted."`
	TileSize   []int         `help:"Tile width,height in pixels."`
	TimeStart  string        `help:"Range start, yyyy-mm-dd; epoch when omitted."`
	TimeEnd    string        `help:"Range end, yyyy-mm-dd; today when omitted."`
	TimePeriod time.Duration `help:"Regular axis period, e.g. 24h; irregular axis when omitted."`
	FourD      bool          `help:"Use the single band_data variable layout."`
}

func (f cubeFlags) config() (*xcubesh.CubeConfig, error) {
	if len(f.Bbox) != 4 {
		return nil, fmt.Errorf("--bbox needs exactly 4 coordinates")
	}
	opts := []xcubesh.Option{
		xcubesh.WithDatasetName(f.Dataset),
		xcubesh.WithBbox(f.Bbox[0], f.Bbox[1], f.Bbox[2], f.Bbox[3]),
		xcubesh.WithSpatialRes(f.SpatialRes),
		xcubesh.WithCRS(f.Crs),
		xcubesh.WithFourD(f.FourD),
	}
	if len(f.Bands) > 0 {
		opts = append(opts, xcubesh.WithBandNames(f.Bands...))
	}
	if len(f.TileSize) == 2 {
		opts = append(opts, xcubesh.WithTileSize(f.TileSize[0], f.TileSize[1]))
	}
	var t1, t2 *time.Time
	if f.TimeStart != "" {
		t, err := time.Parse("2006-01-02", f.TimeStart)
		if err != nil {
			return nil, fmt.Errorf("--time-start: %w", err)
		}
		t1 = &t
	}
	if f.TimeEnd != "" {
		t, err := time.Parse("2006-01-02", f.TimeEnd)
		if err != nil {
			return nil, fmt.Errorf("--time-end: %w", err)
		}
		t2 = &t
	}
	if t1 != nil || t2 != nil {
		opts = append(opts, xcubesh.WithTimeRange(t1, t2))
	}
	if f.TimePeriod > 0 {
		opts = append(opts, xcubesh.WithTimePeriod(f.TimePeriod))
	}
	return xcubesh.NewCubeConfig(opts...)
}

func openStore(ctx context.Context, cfg *xcubesh.CubeConfig, observer xcubesh.Observer) (*xcubesh.VirtualStore, error) {
	creds := shclient.CredentialsFromEnv()
	httpClient := shclient.NewHTTPClient(ctx, creds, "")
	catalogClient := shclient.NewHTTPCatalogClient("", httpClient)
	tileClient := shclient.NewHTTPTileClient("", httpClient)
	return xcubesh.Open(ctx, cfg, catalogClient, tileClient, observer)
}

type showCmd struct {
	cubeFlags
}

func (c *showCmd) Run(logger *log.Logger) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg.ToDict(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if _, regular := cfg.TimePeriod(); !regular {
		// the axis would need a catalog round trip; geometry alone is
		// enough for a sanity check
		w, h := cfg.Size()
		tw, th := cfg.TileSize()
		nx, ny := cfg.NumTiles()
		fmt.Printf("size: %d x %d px (%s per full 8-byte slice)\n", w, h, humanize.Bytes(uint64(w)*uint64(h)*8))
		fmt.Printf("tiles: %d x %d of %d x %d px\n", nx, ny, tw, th)
		return nil
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	axis := store.TimeAxis()
	fmt.Printf("time axis: %d steps\n", axis.Len())
	for i := 0; i < axis.Len() && i < 5; i++ {
		fmt.Printf("  %s\n", axis.Center(i).Format(time.RFC3339))
	}
	if axis.Len() > 5 {
		fmt.Printf("  ... %d more\n", axis.Len()-5)
	}
	return nil
}

type serveCmd struct {
	cubeFlags
	Port      string `default:"8080" help:"Port to serve on."`
	Cors      string `help:"CORS allowed origin value."`
	Cache     int    `default:"64" help:"Chunk cache size in MB."`
	BlobCache string `help:"Optional bucket URL for a persistent chunk cache."`
}

func (c *serveCmd) Run(logger *log.Logger) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStore(ctx, cfg, nil)
	if err != nil {
		return err
	}

	var wrapped xcubesh.KeyValueStore = xcache.NewLRUCache(store, c.Cache*1000*1000)
	if c.BlobCache != "" {
		blobCache, err := xcache.OpenBlobCache(ctx, wrapped, c.BlobCache, cfg.DatasetName(), logger)
		if err != nil {
			return err
		}
		defer blobCache.Close()
		wrapped = blobCache
	}

	server := xserver.NewServer(wrapped, logger, c.Cors)
	logger.Printf("serving %s on port %s", cfg.DatasetName(), c.Port)
	return http.ListenAndServe(":"+c.Port, server.Handler())
}

type warmCmd struct {
	cubeFlags
	BlobCache   string `required:"" help:"Bucket URL the fetched chunks are persisted to."`
	Concurrency int    `default:"4" help:"Concurrent chunk fetches."`
	TimeIndex   int    `default:"0" help:"Time slice to pre-fetch."`
}

func (c *warmCmd) Run(logger *log.Logger) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	ctx := context.Background()

	nx, ny := cfg.NumTiles()
	tracker := xcubesh.NewCoverageTracker(nx, ny)
	store, err := openStore(ctx, cfg, tracker.Observe)
	if err != nil {
		return err
	}
	blobCache, err := xcache.OpenBlobCache(ctx, store, c.BlobCache, cfg.DatasetName(), logger)
	if err != nil {
		return err
	}
	defer blobCache.Close()

	variables := cfg.ResolvedBandNames()
	if cfg.FourD() {
		variables = []string{xcubesh.BandDataArrayName}
	}

	bar := progressbar.Default(int64(len(variables) * nx * ny))
	var totalBytes atomic.Uint64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)
	for _, variable := range variables {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				key := xcubesh.ChunkKey{Variable: variable, T: c.TimeIndex, Y: y, X: x, FourD: cfg.FourD()}.String()
				g.Go(func() error {
					bytes, err := blobCache.Get(gctx, key)
					if err != nil {
						return fmt.Errorf("%s: %w", key, err)
					}
					totalBytes.Add(uint64(len(bytes)))
					bar.Add(1)
					return nil
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Printf("warmed %d chunks, %s fetched, %d distinct chunks observed",
		len(variables)*nx*ny, humanize.Bytes(totalBytes.Load()), tracker.Cardinality())
	return nil
}

var cli struct {
	Show  showCmd  `cmd:"" help:"Print the resolved cube geometry and time axis."`
	Serve serveCmd `cmd:"" help:"Serve the cube's keys over HTTP."`
	Warm  warmCmd  `cmd:"" help:"Pre-fetch a chunk range into a persistent cache."`
}

func main() {
	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
	ctx := kong.Parse(&cli,
		kong.Name("xcubesh"),
		kong.Description("Remote Earth-observation archive as a chunked-array store."),
	)
	err := ctx.Run(logger)
	ctx.FatalIfErrorf(err)
}
