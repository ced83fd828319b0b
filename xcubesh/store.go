package xcubesh

import (
	"context"

	"github.com/paulmach/orb"
)

// TileClient is the narrow collaborator VirtualStore depends on to fetch
// pixel tiles for a planned TileRequest. The core owns no socket; a
// concrete implementation (HTTP, mock, ...) lives outside this package.
type TileClient interface {
	FetchTile(ctx context.Context, req TileRequest) (TileResponse, error)
}

// ObserverRecord is the structured record passed to a store's observer
// callback once per successful chunk fetch.
type ObserverRecord struct {
	Variable   string
	ChunkIndex ChunkKey
	Bbox       orb.Bound
	TimeRange  TimeRange
	Request    TileRequest
}

// Observer is invoked exactly once per successful chunk-key fetch, after
// the request has been fully built but before the bytes are returned to
// the caller. It never fires for metadata-key fetches or failed chunk
// fetches.
type Observer func(ObserverRecord)

// KeyValueStore is the narrow capability VirtualStore implements: list
// every synthesized key, test membership, and fetch bytes. A caching
// wrapper implements the same capability so it composes transparently.
type KeyValueStore interface {
	ListKeys() []string
	Contains(key string) bool
	Get(ctx context.Context, key string) ([]byte, error)
}

// VirtualStore presents a cube as a flat key/value map: synthesized
// metadata documents plus lazily materialized `var/t.y.x[.b]` chunks. It
// is safe for concurrent use: the metadata map is built once at open and
// read-only thereafter, and each Get call is independent.
type VirtualStore struct {
	cfg      *CubeConfig
	axis     *TimeAxis
	metadata *Metadata
	planner  *ChunkRequestPlanner
	decoder  *PixelDecoder
	client   TileClient
	observer Observer
}

// Open builds a VirtualStore for cfg: it computes the time axis (via
// catalogClient, only when cfg selects an irregular axis), synthesizes
// all metadata documents and coordinate chunks, and wires tileClient for
// subsequent lazy chunk fetches. observer may be nil.
func Open(ctx context.Context, cfg *CubeConfig, catalogClient CatalogClient, tileClient TileClient, observer Observer) (*VirtualStore, error) {
	builder := NewTimeAxisBuilder(catalogClient)
	collectionID, hasColl := cfg.CollectionID()
	if !hasColl {
		collectionID = cfg.DatasetName()
	}
	axis, err := builder.Build(ctx, cfg, collectionID)
	if err != nil {
		return nil, err
	}

	metadata, err := NewMetadataSynthesizer().Synthesize(cfg, axis)
	if err != nil {
		return nil, err
	}

	return &VirtualStore{
		cfg:      cfg,
		axis:     axis,
		metadata: metadata,
		planner:  NewChunkRequestPlanner(),
		decoder:  NewPixelDecoder(),
		client:   tileClient,
		observer: observer,
	}, nil
}

// Config returns the store's resolved cube configuration.
func (s *VirtualStore) Config() *CubeConfig { return s.cfg }

// TimeAxis returns the store's computed time axis.
func (s *VirtualStore) TimeAxis() *TimeAxis { return s.axis }

// ListKeys returns every synthesized metadata key, in deterministic
// order.
func (s *VirtualStore) ListKeys() []string {
	out := make([]string, len(s.metadata.Keys))
	copy(out, s.metadata.Keys)
	return out
}

// Contains reports whether key is a synthesized metadata key or a
// well-formed, in-range chunk key.
func (s *VirtualStore) Contains(key string) bool {
	if _, ok := s.metadata.Get(key); ok {
		return true
	}
	chunkKey, ok := ParseChunkKey(key)
	if !ok {
		return false
	}
	_, err := s.planner.Plan(s.cfg, s.axis, chunkKey)
	return err == nil
}

// Get returns the bytes for key. Metadata keys return cached synthesized
// bytes; chunk keys are materialized lazily via the planner and
// TileClient. It fails with KeyNotFoundError for any other string.
func (s *VirtualStore) Get(ctx context.Context, key string) ([]byte, error) {
	if b, ok := s.metadata.Get(key); ok {
		return b, nil
	}

	chunkKey, ok := ParseChunkKey(key)
	if !ok {
		return nil, &KeyNotFoundError{Key: key}
	}

	req, err := s.planner.Plan(s.cfg, s.axis, chunkKey)
	if err != nil {
		return nil, err
	}

	if s.client == nil {
		return nil, &ProviderError{Err: errNoTileClient}
	}
	resp, err := s.client.FetchTile(ctx, req)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}

	bytes, err := s.decoder.Decode(req, chunkKey.Variable, resp)
	if err != nil {
		if _, ok := err.(*EmptyTileError); ok {
			bytes = FillBuffer(req.SampleTypes[0], req.FillValues, req.Width, req.Height, req.NumComponents)
		} else {
			return nil, err
		}
	}

	if s.observer != nil {
		s.observer(ObserverRecord{
			Variable:   chunkKey.Variable,
			ChunkIndex: chunkKey,
			Bbox:       req.Bbox,
			TimeRange:  req.TimeRange,
			Request:    req,
		})
	}

	return bytes, nil
}

type errStoreHasNoTileClient struct{}

func (errStoreHasNoTileClient) Error() string { return "virtual store has no TileClient configured" }

var errNoTileClient error = errStoreHasNoTileClient{}
