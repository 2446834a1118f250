package reputation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAbuseIPDBLookup(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Key"))
		assert.Equal(t, "203.0.113.9", r.URL.Query().Get("ipAddress"))
		assert.Equal(t, "90", r.URL.Query().Get("maxAgeInDays"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"abuseConfidenceScore": 87,
				"totalReports": 42,
				"countryCode": "NL",
				"isp": "Example Hosting BV",
				"domain": "example-hosting.nl"
			}
		}`))
	}))
	defer ts.Close()

	client := NewAbuseIPDBClient("test-key", 90, 5*time.Second, zap.NewNop())
	client.baseURL = ts.URL

	verdict, err := client.Lookup(context.Background(), "203.0.113.9")

	require.NoError(t, err)
	assert.Equal(t, 87, verdict.AbuseScore)
	assert.Equal(t, 42, verdict.TotalReports)
	assert.Equal(t, "NL", verdict.CountryCode)
	assert.Equal(t, "Example Hosting BV", verdict.ISP)
	assert.Equal(t, "example-hosting.nl", verdict.Domain)
}

func TestAbuseIPDBServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer ts.Close()

	client := NewAbuseIPDBClient("test-key", 90, 5*time.Second, zap.NewNop())
	client.baseURL = ts.URL

	_, err := client.Lookup(context.Background(), "203.0.113.9")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestAbuseIPDBConfigured(t *testing.T) {
	ok, key := NewAbuseIPDBClient("", 90, time.Second, zap.NewNop()).Configured()
	assert.False(t, ok)
	assert.Equal(t, "reputation.abuseipdb_api_key", key)
}
