package reputation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

const defaultVirusTotalBaseURL = "https://www.virustotal.com/api/v3"

// virusTotalCredentialKey is the configuration key named in the
// structured "unavailable" failure when the API key is unset
const virusTotalCredentialKey = "reputation.virustotal_api_key"

// VirusTotalClient is a thin adapter to the VirusTotal URL analysis API.
// It validates nothing beyond the HTTP exchange; normalization decisions
// (ratio, tiers, truncation) belong to the tool layer.
type VirusTotalClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewVirusTotalClient creates a new VirusTotal client with its own
// short-timeout HTTP client
func NewVirusTotalClient(apiKey string, timeout time.Duration, logger *zap.Logger) *VirusTotalClient {
	return &VirusTotalClient{
		apiKey:     apiKey,
		baseURL:    defaultVirusTotalBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Name identifies the provider in outcome provenance tags
func (c *VirusTotalClient) Name() string {
	return "virustotal"
}

// Configured reports whether the API key is set
func (c *VirusTotalClient) Configured() (bool, string) {
	return c.apiKey != "", virusTotalCredentialKey
}

// vtResponse is the subset of the VirusTotal URL object we consume
type vtResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
				Undetected int `json:"undetected"`
				Timeout    int `json:"timeout"`
			} `json:"last_analysis_stats"`
			LastAnalysisResults map[string]struct {
				Category string `json:"category"`
			} `json:"last_analysis_results"`
		} `json:"attributes"`
	} `json:"data"`
}

// Lookup queries the provider for one URL
func (c *VirusTotalClient) Lookup(ctx context.Context, rawURL string) (*core.URLVerdict, error) {
	// VirusTotal addresses URL objects by the unpadded base64url of the URL
	id := base64.RawURLEncoding.EncodeToString([]byte(rawURL))
	endpoint := fmt.Sprintf("%s/urls/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("virustotal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("url not known to virustotal")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("virustotal returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read virustotal response: %w", err)
	}

	var parsed vtResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse virustotal response: %w", err)
	}

	stats := parsed.Data.Attributes.LastAnalysisStats
	verdict := &core.URLVerdict{
		TotalVendors: stats.Malicious + stats.Suspicious + stats.Harmless + stats.Undetected + stats.Timeout,
		FlaggedCount: stats.Malicious,
	}
	for vendor, result := range parsed.Data.Attributes.LastAnalysisResults {
		if result.Category == "malicious" {
			verdict.FlaggedVendors = append(verdict.FlaggedVendors, vendor)
		}
	}
	sort.Strings(verdict.FlaggedVendors)

	c.logger.Debug("VirusTotal lookup complete",
		zap.String("url", rawURL),
		zap.Int("flagged", verdict.FlaggedCount),
		zap.Int("total", verdict.TotalVendors))

	return verdict, nil
}
