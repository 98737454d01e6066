package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"taxadmin/internal/model"
	"taxadmin/internal/upstream"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Countries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/countries", r.URL.Path)
		_, _ = w.Write([]byte(`[{"name":"India"},{"name":"Germany"}]`))
	}))
	defer srv.Close()

	client := upstream.NewClient(srv.URL, zerolog.Nop())
	countries, err := client.Countries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Country{{Name: "India"}, {Name: "Germany"}}, countries)
}

func TestClient_TaxRecords_ArbitraryObjects(t *testing.T) {
	// Numeric ids, missing fields and unknown fields all appear in the wild
	body := `[
		{"id":101,"name":"Alice","gender":"female","country":"India","requestDate":"2023-11-02T00:00:00Z","region":"south"},
		{"id":"r-2","createdAt":"2024-01-01T00:00:00Z"}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tax-records", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := upstream.NewClient(srv.URL, zerolog.Nop())
	records, err := client.TaxRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "101", records[0].ID)
	assert.Equal(t, "Alice", records[0].Name)
	assert.Equal(t, "female", records[0].Gender)
	assert.Equal(t, "India", records[0].Country)
	assert.Equal(t, "2023-11-02T00:00:00Z", records[0].RequestDate)
	assert.Contains(t, string(records[0].Raw), `"region":"south"`, "unknown fields are kept verbatim")

	assert.Equal(t, "r-2", records[1].ID)
	assert.Equal(t, "", records[1].RequestDate)
	assert.Equal(t, "2024-01-01T00:00:00Z", records[1].CreatedAt)
}

func TestClient_TaxRecords_NotAnArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	client := upstream.NewClient(srv.URL, zerolog.Nop())
	_, err := client.TaxRecords(context.Background())
	require.Error(t, err)
}

func TestClient_UpdateTaxRecord_MergesIntoOriginal(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/tax-records/r-1", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		// Upstream answers with the authoritative record
		_, _ = w.Write([]byte(`{"id":"r-1","name":"Robert","country":"Japan","gender":"male","requestDate":"2023-11-02T00:00:00Z","region":"south"}`))
	}))
	defer srv.Close()

	rec := model.TaxRecord{
		ID:  "r-1",
		Raw: []byte(`{"id":"r-1","name":"Bob","country":"Germany","gender":"male","requestDate":"2023-11-02T00:00:00Z","region":"south"}`),
	}

	client := upstream.NewClient(srv.URL, zerolog.Nop())
	updated, err := client.UpdateTaxRecord(context.Background(), rec, "Robert", "Japan")
	require.NoError(t, err)

	// The PUT body is the full original object with only name/country replaced
	assert.Equal(t, "Robert", received["name"])
	assert.Equal(t, "Japan", received["country"])
	assert.Equal(t, "male", received["gender"])
	assert.Equal(t, "south", received["region"])

	assert.Equal(t, "r-1", updated.ID)
	assert.Equal(t, "Robert", updated.Name)
	assert.Equal(t, "Japan", updated.Country)
	assert.Contains(t, string(updated.Raw), `"region":"south"`)
}

func TestClient_UpdateTaxRecord_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "record locked", http.StatusConflict)
	}))
	defer srv.Close()

	rec := model.TaxRecord{ID: "r-1", Raw: []byte(`{"id":"r-1"}`)}
	client := upstream.NewClient(srv.URL, zerolog.Nop())

	_, err := client.UpdateTaxRecord(context.Background(), rec, "x", "y")
	require.Error(t, err)

	var apiErr *upstream.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "record locked")
}
