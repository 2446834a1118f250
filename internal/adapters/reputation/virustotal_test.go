package reputation

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVirusTotalLookup(t *testing.T) {
	const rawURL = "https://lure.example.org/pay"
	wantID := base64.RawURLEncoding.EncodeToString([]byte(rawURL))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-apikey"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/urls/"+wantID))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"attributes": {
					"last_analysis_stats": {"malicious": 3, "suspicious": 1, "harmless": 60, "undetected": 6, "timeout": 0},
					"last_analysis_results": {
						"VendorB": {"category": "malicious"},
						"VendorA": {"category": "malicious"},
						"VendorC": {"category": "harmless"}
					}
				}
			}
		}`))
	}))
	defer ts.Close()

	client := NewVirusTotalClient("test-key", 5*time.Second, zap.NewNop())
	client.baseURL = ts.URL

	verdict, err := client.Lookup(context.Background(), rawURL)

	require.NoError(t, err)
	assert.Equal(t, 70, verdict.TotalVendors)
	assert.Equal(t, 3, verdict.FlaggedCount)
	assert.Equal(t, []string{"VendorA", "VendorB"}, verdict.FlaggedVendors)
}

func TestVirusTotalUnknownURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewVirusTotalClient("test-key", 5*time.Second, zap.NewNop())
	client.baseURL = ts.URL

	_, err := client.Lookup(context.Background(), "https://nobody-scanned.example/")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not known")
}

func TestVirusTotalServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewVirusTotalClient("test-key", 5*time.Second, zap.NewNop())
	client.baseURL = ts.URL

	_, err := client.Lookup(context.Background(), "https://example.com/")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestVirusTotalConfigured(t *testing.T) {
	ok, key := NewVirusTotalClient("", time.Second, zap.NewNop()).Configured()
	assert.False(t, ok)
	assert.Equal(t, "reputation.virustotal_api_key", key)

	ok, _ = NewVirusTotalClient("k", time.Second, zap.NewNop()).Configured()
	assert.True(t, ok)
}
