package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

const defaultAbuseIPDBBaseURL = "https://api.abuseipdb.com/api/v2"

// abuseIPDBCredentialKey is the configuration key named in the
// structured "unavailable" failure when the API key is unset
const abuseIPDBCredentialKey = "reputation.abuseipdb_api_key"

// AbuseIPDBClient is a thin adapter to the AbuseIPDB check API
type AbuseIPDBClient struct {
	apiKey     string
	baseURL    string
	maxAgeDays int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAbuseIPDBClient creates a new AbuseIPDB client with its own
// short-timeout HTTP client
func NewAbuseIPDBClient(apiKey string, maxAgeDays int, timeout time.Duration, logger *zap.Logger) *AbuseIPDBClient {
	return &AbuseIPDBClient{
		apiKey:     apiKey,
		baseURL:    defaultAbuseIPDBBaseURL,
		maxAgeDays: maxAgeDays,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Name identifies the provider in outcome provenance tags
func (c *AbuseIPDBClient) Name() string {
	return "abuseipdb"
}

// Configured reports whether the API key is set
func (c *AbuseIPDBClient) Configured() (bool, string) {
	return c.apiKey != "", abuseIPDBCredentialKey
}

// abuseResponse is the subset of the AbuseIPDB check object we consume
type abuseResponse struct {
	Data struct {
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		TotalReports         int    `json:"totalReports"`
		CountryCode          string `json:"countryCode"`
		ISP                  string `json:"isp"`
		Domain               string `json:"domain"`
	} `json:"data"`
}

// Lookup queries the provider for one IPv4 address
func (c *AbuseIPDBClient) Lookup(ctx context.Context, ip string) (*core.IPVerdict, error) {
	query := url.Values{}
	query.Set("ipAddress", ip)
	query.Set("maxAgeInDays", strconv.Itoa(c.maxAgeDays))
	endpoint := fmt.Sprintf("%s/check?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("abuseipdb request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("abuseipdb returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read abuseipdb response: %w", err)
	}

	var parsed abuseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse abuseipdb response: %w", err)
	}

	c.logger.Debug("AbuseIPDB lookup complete",
		zap.String("ip", ip),
		zap.Int("score", parsed.Data.AbuseConfidenceScore))

	return &core.IPVerdict{
		AbuseScore:   parsed.Data.AbuseConfidenceScore,
		TotalReports: parsed.Data.TotalReports,
		CountryCode:  parsed.Data.CountryCode,
		ISP:          parsed.Data.ISP,
		Domain:       parsed.Data.Domain,
	}, nil
}
