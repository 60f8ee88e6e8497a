package names

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxonomix/backend/internal/models"
)

func TestGBIFClient_Match(t *testing.T) {
	var gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/species/match", r.URL.Path)
		gotName = r.URL.Query().Get("name")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"usageKey": 5219173,
			"scientificName": "Canis lupus Linnaeus, 1758",
			"canonicalName": "Canis lupus",
			"authorship": "Linnaeus, 1758 ",
			"rank": "SPECIES",
			"status": "ACCEPTED",
			"confidence": 99,
			"matchType": "EXACT"
		}`))
	}))
	defer srv.Close()

	client := NewGBIFClient(GBIFOptions{BaseURL: srv.URL + "/"})
	m, err := client.Match(context.Background(), "Canis lupus")
	require.NoError(t, err)

	assert.Equal(t, "Canis lupus", gotName)
	assert.Equal(t, models.NameMatch{
		Input:          "Canis lupus",
		ScientificName: "Canis lupus Linnaeus, 1758",
		CanonicalName:  "Canis lupus",
		Authorship:     "Linnaeus, 1758",
		Rank:           "SPECIES",
		Status:         "ACCEPTED",
		MatchType:      models.MatchExact,
		Confidence:     99,
		UsageKey:       5219173,
	}, m)
	assert.True(t, m.Accepted())
}

func TestGBIFClient_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confidence": 100, "matchType": "NONE"}`))
	}))
	defer srv.Close()

	m, err := NewGBIFClient(GBIFOptions{BaseURL: srv.URL}).Match(context.Background(), "lion")
	require.NoError(t, err)
	assert.Equal(t, models.MatchNone, m.MatchType)
	assert.False(t, m.Accepted())
}

func TestGBIFClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"matchType":`))
			},
		},
		{
			name: "slow response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(300 * time.Millisecond)
				w.Write([]byte(`{"matchType":"EXACT","scientificName":"X y"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewGBIFClient(GBIFOptions{BaseURL: srv.URL, Timeout: 100 * time.Millisecond})
			_, err := client.Match(context.Background(), "Canis lupus")
			assert.Error(t, err)
		})
	}
}

func TestGBIFClient_RateLimitRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"matchType":"NONE"}`))
	}))
	defer srv.Close()

	client := NewGBIFClient(GBIFOptions{BaseURL: srv.URL, RateLimit: 0.1, Burst: 1})
	_, err := client.Match(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Match(ctx, "b")
	assert.Error(t, err)
}
