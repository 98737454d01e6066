package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taxadmin/internal/model"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d %s: %s", e.Method, e.URL, e.StatusCode, e.Status, e.Body)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// Client talks to the remote tax API. It is the only component that performs
// network I/O; everything else works off the in-memory working set.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Countries fetches the full country list. Upstream guarantees unique names;
// the name is the only field.
func (c *Client) Countries(ctx context.Context) ([]model.Country, error) {
	data, err := c.do(ctx, http.MethodGet, "/countries", nil)
	if err != nil {
		return nil, err
	}

	var countries []model.Country
	if err := json.Unmarshal(data, &countries); err != nil {
		return nil, fmt.Errorf("failed to decode countries response: %w", err)
	}
	return countries, nil
}

// TaxRecords fetches the raw record list. Upstream objects have no fixed
// schema, so fields are pulled out with gjson and the original object is kept
// verbatim on each record.
func (c *Client) TaxRecords(ctx context.Context) ([]model.TaxRecord, error) {
	data, err := c.do(ctx, http.MethodGet, "/tax-records", nil)
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("unexpected tax-records response: not a JSON array")
	}

	var records []model.TaxRecord
	for _, item := range parsed.Array() {
		records = append(records, recordFromJSON([]byte(item.Raw)))
	}
	return records, nil
}

// UpdateTaxRecord PUTs the record's original upstream object with name and
// country replaced, and returns the authoritative record from the response.
func (c *Client) UpdateTaxRecord(ctx context.Context, rec model.TaxRecord, name, country string) (model.TaxRecord, error) {
	var merged map[string]any
	if err := json.Unmarshal(rec.Raw, &merged); err != nil {
		return model.TaxRecord{}, fmt.Errorf("failed to decode stored record %s: %w", rec.ID, err)
	}
	merged["name"] = name
	merged["country"] = country

	body, err := json.Marshal(merged)
	if err != nil {
		return model.TaxRecord{}, fmt.Errorf("failed to encode update for record %s: %w", rec.ID, err)
	}

	data, err := c.do(ctx, http.MethodPut, "/tax-records/"+url.PathEscape(rec.ID), body)
	if err != nil {
		return model.TaxRecord{}, err
	}

	if !gjson.ValidBytes(data) {
		return model.TaxRecord{}, fmt.Errorf("invalid JSON in update response for record %s", rec.ID)
	}
	return recordFromJSON(data), nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Upstream request")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     method,
			URL:        c.baseURL + path,
			Body:       string(data),
		}
	}

	return data, nil
}

// recordFromJSON extracts the consumed fields from one upstream object.
// IDs arrive as strings or numbers depending on the source; gjson's String()
// normalizes both.
func recordFromJSON(raw []byte) model.TaxRecord {
	return model.TaxRecord{
		ID:          gjson.GetBytes(raw, "id").String(),
		Name:        gjson.GetBytes(raw, "name").String(),
		Gender:      gjson.GetBytes(raw, "gender").String(),
		Country:     gjson.GetBytes(raw, "country").String(),
		RequestDate: gjson.GetBytes(raw, "requestDate").String(),
		CreatedAt:   gjson.GetBytes(raw, "createdAt").String(),
		Raw:         raw,
	}
}
