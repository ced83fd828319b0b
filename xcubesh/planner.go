package xcubesh

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ChunkKey is a parsed chunk address: `<band>/<t>.<y>.<x>` for the 3D
// layout, or `band_data/<t>.<y>.<x>.<b>` for the 4D layout.
type ChunkKey struct {
	Variable string
	T, Y, X  int
	B        int // always 0; present only for the 4D layout
	FourD    bool
}

// ParseChunkKey parses a raw store key into a ChunkKey, or reports that
// the key is not a chunk address at all (e.g. it's a metadata key).
func ParseChunkKey(key string) (ChunkKey, bool) {
	slash := strings.IndexByte(key, '/')
	if slash < 0 {
		return ChunkKey{}, false
	}
	variable, rest := key[:slash], key[slash+1:]
	if variable == "" || rest == "" {
		return ChunkKey{}, false
	}
	parts := strings.Split(rest, ".")

	toInt := func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}

	switch len(parts) {
	case 3:
		t, ok1 := toInt(parts[0])
		y, ok2 := toInt(parts[1])
		x, ok3 := toInt(parts[2])
		if !ok1 || !ok2 || !ok3 {
			return ChunkKey{}, false
		}
		return ChunkKey{Variable: variable, T: t, Y: y, X: x}, true
	case 4:
		t, ok1 := toInt(parts[0])
		y, ok2 := toInt(parts[1])
		x, ok3 := toInt(parts[2])
		b, ok4 := toInt(parts[3])
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return ChunkKey{}, false
		}
		return ChunkKey{Variable: variable, T: t, Y: y, X: x, B: b, FourD: true}, true
	default:
		return ChunkKey{}, false
	}
}

// String renders the ChunkKey back into its store-key form.
func (k ChunkKey) String() string {
	if k.FourD {
		return fmt.Sprintf("%s/%d.%d.%d.%d", k.Variable, k.T, k.Y, k.X, k.B)
	}
	return fmt.Sprintf("%s/%d.%d.%d", k.Variable, k.T, k.Y, k.X)
}

// TileRequest is a fully populated pixel-tile request descriptor, ready
// to be handed to a TileClient.
type TileRequest struct {
	DatasetName   string
	CollectionID  string
	Bbox          orb.Bound
	TimeRange     TimeRange
	Bands         []string
	SampleTypes   []string
	FillValues    []float64
	Upsampling    Resampling
	Downsampling  Resampling
	Mosaicking    MosaickingOrder
	Width         int
	Height        int
	NumComponents int
}

// ChunkRequestPlanner maps a ChunkKey to a concrete TileRequest: the
// sub-bbox, time sub-range, band list, sample type/fill value, and
// output dimensions the provider needs to serve that chunk.
type ChunkRequestPlanner struct{}

// NewChunkRequestPlanner returns a ChunkRequestPlanner. It carries no
// state; it consults only the CubeConfig and TimeAxis passed to Plan.
func NewChunkRequestPlanner() *ChunkRequestPlanner { return &ChunkRequestPlanner{} }

// Plan computes the TileRequest for key against cfg and axis.
func (ChunkRequestPlanner) Plan(cfg *CubeConfig, axis *TimeAxis, key ChunkKey) (TileRequest, error) {
	numTilesX, numTilesY := cfg.NumTiles()
	nT := axis.Len()

	if key.T < 0 || key.T >= nT {
		return TileRequest{}, &KeyNotFoundError{Key: key.String()}
	}
	if key.Y < 0 || key.Y >= numTilesY || key.X < 0 || key.X >= numTilesX {
		return TileRequest{}, &KeyNotFoundError{Key: key.String()}
	}
	if key.FourD != cfg.FourD() {
		return TileRequest{}, &KeyNotFoundError{Key: key.String()}
	}
	if key.FourD && key.B != 0 {
		return TileRequest{}, &KeyNotFoundError{Key: key.String()}
	}

	bbox := cfg.Bbox()
	res := cfg.SpatialRes()
	tw, th := cfg.TileSize()

	xChunkLow := bbox.Min[0] + float64(key.X)*float64(tw)*res
	xChunkHigh := xChunkLow + float64(tw)*res
	if xChunkHigh > bbox.Max[0] {
		xChunkHigh = bbox.Max[0]
	}
	yChunkHigh := bbox.Max[1] - float64(key.Y)*float64(th)*res
	yChunkLow := yChunkHigh - float64(th)*res
	if yChunkLow < bbox.Min[1] {
		yChunkLow = bbox.Min[1]
	}

	var bands []string
	if cfg.FourD() {
		bands = cfg.ResolvedBandNames()
	} else {
		if key.Variable != BandDataArrayName {
			found := false
			for _, n := range cfg.ResolvedBandNames() {
				if n == key.Variable {
					found = true
					break
				}
			}
			if !found {
				return TileRequest{}, &UnknownBandError{DatasetName: cfg.DatasetName(), BandName: key.Variable}
			}
		}
		bands = []string{key.Variable}
	}

	sampleTypes := make([]string, len(bands))
	fillValues := make([]float64, len(bands))
	for i, b := range bands {
		st, fv, _, err := cfg.ResolvedBand(b)
		if err != nil {
			return TileRequest{}, err
		}
		sampleTypes[i] = st
		fillValues[i] = fv
	}

	collectionID, _ := cfg.CollectionID()

	return TileRequest{
		DatasetName:  cfg.DatasetName(),
		CollectionID: collectionID,
		Bbox: orb.Bound{
			Min: orb.Point{xChunkLow, yChunkLow},
			Max: orb.Point{xChunkHigh, yChunkHigh},
		},
		TimeRange:     axis.Bounds(key.T),
		Bands:         bands,
		SampleTypes:   sampleTypes,
		FillValues:    fillValues,
		Upsampling:    cfg.Upsampling(),
		Downsampling:  cfg.Downsampling(),
		Mosaicking:    cfg.MosaickingOrder(),
		Width:         tw,
		Height:        th,
		NumComponents: len(bands),
	}, nil
}
