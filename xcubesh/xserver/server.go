// Package xserver serves a cube store's key/value surface over HTTP:
// synthesized metadata documents and lazily fetched chunk bytes, each
// addressed by its store key as the URL path.
package xserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/dcs4cop/xcube-sh/xcubesh"
)

// Server translates GET requests into store lookups. KeyNotFound maps
// to 404; every other store error maps to 500.
type Server struct {
	store   xcubesh.KeyValueStore
	logger  *log.Logger
	cors    string
	metrics *metrics
}

// NewServer wraps store. corsOrigin, when non-empty, is the allowed
// Access-Control-Allow-Origin value.
func NewServer(store xcubesh.KeyValueStore, logger *log.Logger, corsOrigin string) *Server {
	return &Server{
		store:   store,
		logger:  logger,
		cors:    corsOrigin,
		metrics: createMetrics(logger),
	}
}

// keyKind classifies a store key for metrics labels.
func keyKind(key string) string {
	if _, ok := xcubesh.ParseChunkKey(key); ok {
		return "chunk"
	}
	return "metadata"
}

// Get serves a single store key and returns the status code, response
// headers, and body.
func (s *Server) Get(ctx context.Context, path string) (int, map[string]string, []byte) {
	start := time.Now()
	key := strings.TrimPrefix(path, "/")

	if key == "healthz" {
		return http.StatusOK, map[string]string{"Content-Type": "text/plain"}, []byte("ok")
	}

	kind := keyKind(key)
	status, headers, body := s.get(ctx, key)
	s.metrics.observe(kind, strconv.Itoa(status), len(body), start)
	return status, headers, body
}

func (s *Server) get(ctx context.Context, key string) (int, map[string]string, []byte) {
	bytes, err := s.store.Get(ctx, key)
	if err != nil {
		var notFound *xcubesh.KeyNotFoundError
		if errors.As(err, &notFound) {
			return http.StatusNotFound, map[string]string{}, []byte("key not found")
		}
		s.logger.Printf("get %s failed: %v", key, err)
		return http.StatusInternalServerError, map[string]string{}, []byte("internal server error")
	}

	contentType := "application/octet-stream"
	if strings.HasSuffix(key, ".zgroup") || strings.HasSuffix(key, ".zattrs") || strings.HasSuffix(key, ".zarray") {
		contentType = "application/json"
	}
	return http.StatusOK, map[string]string{"Content-Type": contentType}, bytes
}

// Handler returns an http.Handler for the server, with CORS applied
// when a CORS origin was configured.
func (s *Server) Handler() http.Handler {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		statusCode, headers, body := s.Get(r.Context(), r.URL.Path)
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(statusCode)
		w.Write(body)
	})
	if s.cors == "" {
		return handler
	}
	return cors.New(cors.Options{AllowedOrigins: []string{s.cors}}).Handler(handler)
}
