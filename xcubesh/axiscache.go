package xcubesh

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SQLiteTimeAxisCache is a TimeAxisCache backed by a local SQLite file.
// Irregular-axis queries page through the feature catalog one network
// round trip per ShCatalogFeatureLimit features; caching the coalesced
// result makes repeated opens over the same region and range free.
type SQLiteTimeAxisCache struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

const axisCacheSchema = `
CREATE TABLE IF NOT EXISTS time_axis (
	query_hash INTEGER NOT NULL,
	idx        INTEGER NOT NULL,
	start_ns   INTEGER NOT NULL,
	end_ns     INTEGER NOT NULL,
	PRIMARY KEY (query_hash, idx)
);`

// OpenSQLiteTimeAxisCache opens (creating if needed) the cache database
// at path.
func OpenSQLiteTimeAxisCache(path string) (*SQLiteTimeAxisCache, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("open time axis cache: %w", err)
	}
	if err := sqlitex.ExecuteTransient(conn, axisCacheSchema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init time axis cache: %w", err)
	}
	return &SQLiteTimeAxisCache{conn: conn}, nil
}

// Close releases the underlying database connection.
func (c *SQLiteTimeAxisCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// queryHash collapses the cache key tuple into a single xxhash value.
// Nanosecond instants and full-precision floats go into the digest, so
// two queries collide only if they are byte-identical.
func queryHash(collectionID string, bbox orb.Bound, timeRange TimeRange) int64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s|%v|%v|%v|%v|%d|%d",
		collectionID,
		bbox.Min[0], bbox.Min[1], bbox.Max[0], bbox.Max[1],
		timeRange.Start.UnixNano(), timeRange.End.UnixNano())
	return int64(h.Sum64())
}

// Lookup implements TimeAxisCache.
func (c *SQLiteTimeAxisCache) Lookup(collectionID string, bbox orb.Bound, timeRange TimeRange) ([]TimeRange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ranges []TimeRange
	err := sqlitex.ExecuteTransient(c.conn,
		"SELECT start_ns, end_ns FROM time_axis WHERE query_hash = ? ORDER BY idx",
		&sqlitex.ExecOptions{
			Args: []any{queryHash(collectionID, bbox, timeRange)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ranges = append(ranges, TimeRange{
					Start: time.Unix(0, stmt.ColumnInt64(0)).UTC(),
					End:   time.Unix(0, stmt.ColumnInt64(1)).UTC(),
				})
				return nil
			},
		})
	if err != nil || len(ranges) == 0 {
		return nil, false
	}
	return ranges, true
}

// Store implements TimeAxisCache.
func (c *SQLiteTimeAxisCache) Store(collectionID string, bbox orb.Bound, timeRange TimeRange, ranges []TimeRange) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := queryHash(collectionID, bbox, timeRange)
	var err error
	defer sqlitex.Save(c.conn)(&err)

	err = sqlitex.ExecuteTransient(c.conn,
		"DELETE FROM time_axis WHERE query_hash = ?",
		&sqlitex.ExecOptions{Args: []any{hash}})
	if err != nil {
		return fmt.Errorf("store time axis: %w", err)
	}
	for i, r := range ranges {
		err = sqlitex.ExecuteTransient(c.conn,
			"INSERT INTO time_axis (query_hash, idx, start_ns, end_ns) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{hash, i, r.Start.UnixNano(), r.End.UnixNano()}})
		if err != nil {
			return fmt.Errorf("store time axis: %w", err)
		}
	}
	return nil
}
