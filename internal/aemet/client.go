package aemet

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/polarmet/antartida-weather/internal/antartida"
	"github.com/polarmet/antartida-weather/internal/common"
)

// DefaultBaseURL is the AEMET OpenData API root.
const DefaultBaseURL = "https://opendata.aemet.es/opendata/api"

// Data retrieval is a two-step protocol: a metadata call returns a transient
// URL ("datos") from which the actual payload is downloaded.
type metadataEnvelope struct {
	Estado      int    `json:"estado"`
	Descripcion string `json:"descripcion"`
	Datos       string `json:"datos"`
}

// Client fetches Antarctic station measurements and the station inventory
// from AEMET OpenData. It issues no retries; a circuit breaker makes calls
// fail fast while the upstream is down. Retrying a failed request is the
// caller's decision.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a Client using the shared HTTP client (which carries
// the outbound timeout).
func NewClient(client *http.Client, apiKey string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "aemet",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		client:  client,
		circuit: cb,
	}
}

// WithBaseURL overrides the API root. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// FetchMeasurements retrieves all observations for a station inside
// [startUTC, endUTC]. A provider response of estado 404 with a "no hay
// datos" description means the range is simply empty and yields an empty
// slice; any other non-success metadata status is a *RemoteError.
func (c *Client) FetchMeasurements(ctx context.Context, startUTC, endUTC time.Time, stationID string) ([]antartida.Measurement, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint := fmt.Sprintf(
		"%s/antartida/datos/fechaini/%s/fechafin/%s/estacion/%s",
		c.baseURL,
		formatAemetTime(startUTC),
		formatAemetTime(endUTC),
		url.PathEscape(stationID),
	)
	log.Printf("INFO: requesting AEMET metadata for station %s", stationID)

	meta, err := c.fetchMetadata(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if meta.Datos == "" {
		if isNoDataResponse(meta) {
			return []antartida.Measurement{}, nil
		}
		return nil, &RemoteError{
			Estado:      meta.Estado,
			Descripcion: meta.Descripcion,
			Reason:      "metadata response is missing 'datos' URL",
		}
	}

	log.Printf("INFO: downloading AEMET data from temporary URL")
	var rawRows []map[string]any
	if err := c.getJSON(ctx, meta.Datos, &rawRows); err != nil {
		return nil, err
	}

	rows := make([]antartida.Measurement, 0, len(rawRows))
	for _, raw := range rawRows {
		row, ok := mapMeasurementRow(raw)
		if !ok {
			log.Printf("WARN: skipping AEMET row without a parseable observation time")
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchStationCatalog retrieves the full upstream station inventory. Unlike
// point-measurement queries, an empty inventory is never a valid outcome.
func (c *Client) FetchStationCatalog(ctx context.Context) ([]antartida.StationCatalogEntry, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint := c.baseURL + "/valores/climatologicos/inventarioestaciones/todasestaciones"
	log.Printf("INFO: requesting AEMET station inventory metadata")

	meta, err := c.fetchMetadata(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if meta.Datos == "" {
		return nil, &RemoteError{
			Estado:      meta.Estado,
			Descripcion: meta.Descripcion,
			Reason:      "station inventory metadata is missing 'datos' URL",
		}
	}

	var rawRows []map[string]any
	if err := c.getJSON(ctx, meta.Datos, &rawRows); err != nil {
		return nil, err
	}

	entries := make([]antartida.StationCatalogEntry, 0, len(rawRows))
	for _, raw := range rawRows {
		entry, ok := mapCatalogRow(raw)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, &RemoteError{Reason: "station inventory payload contained no stations"}
	}
	return entries, nil
}

func (c *Client) fetchMetadata(ctx context.Context, endpoint string) (metadataEnvelope, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return metadataEnvelope{}, fmt.Errorf("aemet: building metadata URL: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	var meta metadataEnvelope
	if err := c.getJSON(ctx, u.String(), &meta); err != nil {
		return metadataEnvelope{}, err
	}
	return meta, nil
}

// getJSON performs one breaker-guarded GET and decodes the response body.
// AEMET reports application-level failures inside a 200 response, so only
// transport-level statuses are checked here.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	result, err := c.circuit.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	})
	if err != nil {
		// Connection failures, client timeouts, and an open breaker are
		// upstream failures just like a bad status: same error shape.
		return &RemoteError{Reason: fmt.Sprintf("request failed: %v", err)}
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{HTTPStatus: resp.StatusCode, Reason: "unexpected HTTP status"}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Reason: fmt.Sprintf("malformed JSON payload: %v", err)}
	}
	return nil
}

// isNoDataResponse detects the provider's "empty result" sentinel: estado
// 404 with a natural-language description containing "no hay datos". The
// check is deliberately narrow — a 404 with any other description is
// treated as a failure, not an empty range.
func isNoDataResponse(meta metadataEnvelope) bool {
	return meta.Estado == http.StatusNotFound &&
		common.HasAny(strings.ToLower(meta.Descripcion), "no hay datos")
}

// formatAemetTime renders a UTC instant in the path format the antartida
// endpoint expects.
func formatAemetTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "UTC"
}
