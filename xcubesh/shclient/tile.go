package shclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cenkalti/backoff/v4"

	"github.com/dcs4cop/xcube-sh/xcubesh"
)

// Response headers the process API uses to declare tile geometry.
const (
	headerWidth      = "SH-Width"
	headerHeight     = "SH-Height"
	headerComponents = "SH-Components"
	headerSampleType = "SH-SampleType"
)

// HTTPTileClient implements xcubesh.TileClient over the provider's
// process endpoint.
type HTTPTileClient struct {
	baseURL string
	client  HTTPClient
}

// NewHTTPTileClient returns a tile client rooted at baseURL
// (DefaultProcessURL if empty), issuing requests through client.
func NewHTTPTileClient(baseURL string, client HTTPClient) *HTTPTileClient {
	if baseURL == "" {
		baseURL = DefaultProcessURL
	}
	return &HTTPTileClient{baseURL: baseURL, client: client}
}

type processRequest struct {
	Input  processInput  `json:"input"`
	Output processOutput `json:"output"`
}

type processInput struct {
	Bounds processBounds `json:"bounds"`
	Data   []processData `json:"data"`
}

type processBounds struct {
	Bbox       []float64         `json:"bbox"`
	Properties map[string]string `json:"properties,omitempty"`
}

type processData struct {
	Type            string            `json:"type"`
	DataFilter      processDataFilter `json:"dataFilter"`
	Processing      map[string]string `json:"processing,omitempty"`
	MosaickingOrder string            `json:"mosaickingOrder,omitempty"`
}

type processDataFilter struct {
	TimeRange processTimeRange `json:"timeRange"`
}

type processTimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processOutput struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Responses []processResponse `json:"responses"`
}

type processResponse struct {
	Identifier string        `json:"identifier"`
	Format     processFormat `json:"format"`
}

type processFormat struct {
	Type string `json:"type"`
}

func buildProcessRequest(req xcubesh.TileRequest) processRequest {
	datasetType := req.DatasetName
	if req.CollectionID != "" {
		datasetType = req.CollectionID
	}
	return processRequest{
		Input: processInput{
			Bounds: processBounds{
				Bbox: []float64{req.Bbox.Min[0], req.Bbox.Min[1], req.Bbox.Max[0], req.Bbox.Max[1]},
			},
			Data: []processData{{
				Type: datasetType,
				DataFilter: processDataFilter{
					TimeRange: processTimeRange{
						From: req.TimeRange.Start.Format("2006-01-02T15:04:05Z"),
						To:   req.TimeRange.End.Format("2006-01-02T15:04:05Z"),
					},
				},
				Processing: map[string]string{
					"upsampling":   string(req.Upsampling),
					"downsampling": string(req.Downsampling),
				},
				MosaickingOrder: string(req.Mosaicking),
			}},
		},
		Output: processOutput{
			Width:  req.Width,
			Height: req.Height,
			Responses: []processResponse{{
				Identifier: "default",
				Format:     processFormat{Type: "image/tiff"},
			}},
		},
	}
}

// FetchTile implements xcubesh.TileClient. Transient failures (5xx,
// network errors) are retried with exponential backoff; 4xx responses
// fail immediately.
func (c *HTTPTileClient) FetchTile(ctx context.Context, req xcubesh.TileRequest) (xcubesh.TileResponse, error) {
	body, err := json.Marshal(buildProcessRequest(req))
	if err != nil {
		return xcubesh.TileResponse{}, err
	}

	var out xcubesh.TileResponse
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, err := c.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("process request: HTTP %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("process request: HTTP %d", resp.StatusCode))
		}

		content, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		out = xcubesh.TileResponse{
			Width:      headerInt(resp.Header, headerWidth, req.Width),
			Height:     headerInt(resp.Header, headerHeight, req.Height),
			Components: headerInt(resp.Header, headerComponents, req.NumComponents),
			SampleType: headerString(resp.Header, headerSampleType, req.SampleTypes[0]),
			Body:       content,
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return xcubesh.TileResponse{}, err
	}
	return out, nil
}

func headerInt(h http.Header, key string, fallback int) int {
	if v := h.Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func headerString(h http.Header, key, fallback string) string {
	if v := h.Get(key); v != "" {
		return v
	}
	return fallback
}

var _ xcubesh.TileClient = (*HTTPTileClient)(nil)
