package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seriesEnvelope struct {
	Seriess []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"seriess"`
}

func TestDecodeJSONObject(t *testing.T) {
	got, err := DecodeJSONObject[seriesEnvelope](strings.NewReader(`{"seriess":[{"id":"UNRATE","title":"Unemployment Rate"}]}`))
	require.NoError(t, err)
	require.Len(t, got.Seriess, 1)
	assert.Equal(t, "UNRATE", got.Seriess[0].ID)

	_, err = DecodeJSONObject[seriesEnvelope](strings.NewReader(`{"seriess":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json: decode object")
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"seriess":[{"id":"GDPC1","title":"Real Gross Domestic Product"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	got, err := GetJSON[seriesEnvelope](context.Background(), newTestFetcher(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Real Gross Domestic Product", got.Seriess[0].Title)
}
