package shclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/paulmach/orb"

	"github.com/dcs4cop/xcube-sh/xcubesh"
)

// HTTPClient lets tests swap out the default client with a mock one.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPCatalogClient implements xcubesh.CatalogClient over the provider's
// STAC-style catalog search endpoint.
type HTTPCatalogClient struct {
	baseURL string
	client  HTTPClient
}

// NewHTTPCatalogClient returns a catalog client rooted at baseURL
// (DefaultCatalogURL if empty), issuing requests through client.
func NewHTTPCatalogClient(baseURL string, client HTTPClient) *HTTPCatalogClient {
	if baseURL == "" {
		baseURL = DefaultCatalogURL
	}
	return &HTTPCatalogClient{baseURL: baseURL, client: client}
}

type catalogSearchRequest struct {
	Collections []string  `json:"collections"`
	Bbox        []float64 `json:"bbox"`
	Datetime    string    `json:"datetime"`
	Limit       int       `json:"limit"`
	Next        int       `json:"next,omitempty"`
}

type catalogSearchResponse struct {
	Features []struct {
		Properties struct {
			Date string `json:"date"`
			Time string `json:"time"`
		} `json:"properties"`
	} `json:"features"`
}

// FetchFeatures implements xcubesh.CatalogClient. Transient failures
// (5xx, network errors) are retried with exponential backoff; 4xx
// responses fail immediately.
func (c *HTTPCatalogClient) FetchFeatures(ctx context.Context, collectionID string, bbox orb.Bound, timeRange xcubesh.TimeRange, limit, offset int) ([]xcubesh.Feature, error) {
	body, err := json.Marshal(catalogSearchRequest{
		Collections: []string{collectionID},
		Bbox:        []float64{bbox.Min[0], bbox.Min[1], bbox.Max[0], bbox.Max[1]},
		Datetime: fmt.Sprintf("%s/%s",
			timeRange.Start.Format("2006-01-02T15:04:05Z"),
			timeRange.End.Format("2006-01-02T15:04:05Z")),
		Limit: limit,
		Next:  offset,
	})
	if err != nil {
		return nil, err
	}

	var parsed catalogSearchResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/1.0.0/search", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("catalog search: HTTP %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("catalog search: HTTP %d", resp.StatusCode))
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		parsed = catalogSearchResponse{}
		if err := json.Unmarshal(data, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("catalog search: %w", err))
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return nil, err
	}

	features := make([]xcubesh.Feature, len(parsed.Features))
	for i, f := range parsed.Features {
		features[i] = xcubesh.Feature{Date: f.Properties.Date, Time: f.Properties.Time}
	}
	return features, nil
}

var _ xcubesh.CatalogClient = (*HTTPCatalogClient)(nil)
