package names

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/taxonomix/backend/internal/models"
)

const (
	// DefaultGBIFBaseURL is the public GBIF API root.
	DefaultGBIFBaseURL = "https://api.gbif.org"
	// DefaultMatchTimeout bounds a single external lookup.
	DefaultMatchTimeout = 5 * time.Second
)

// MatchService resolves one name against a naming authority.
type MatchService interface {
	Match(ctx context.Context, name string) (models.NameMatch, error)
}

// GBIFOptions configures a GBIFClient.
type GBIFOptions struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second; <= 0 disables throttling
	Burst     int
	UserAgent string
}

// GBIFClient calls the GBIF species match endpoint.
type GBIFClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGBIFClient creates a client from opts, filling in defaults.
func NewGBIFClient(opts GBIFOptions) *GBIFClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGBIFBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultMatchTimeout
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "taxonomix/1.0"
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &GBIFClient{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(limit, opts.Burst),
	}
}

// gbifMatch is the subset of the species match response we read.
type gbifMatch struct {
	UsageKey       int64  `json:"usageKey"`
	ScientificName string `json:"scientificName"`
	CanonicalName  string `json:"canonicalName"`
	Authorship     string `json:"authorship"`
	Rank           string `json:"rank"`
	Status         string `json:"status"`
	Confidence     int    `json:"confidence"`
	MatchType      string `json:"matchType"`
}

// Match queries /v1/species/match for name.
func (c *GBIFClient) Match(ctx context.Context, name string) (models.NameMatch, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.NameMatch{}, fmt.Errorf("rate limit wait failed: %w", err)
	}

	params := url.Values{}
	params.Set("name", name)
	fullURL := fmt.Sprintf("%s/v1/species/match?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return models.NameMatch{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NameMatch{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return models.NameMatch{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body gbifMatch
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.NameMatch{}, fmt.Errorf("failed to decode response: %w", err)
	}

	matchType := models.MatchType(strings.ToUpper(body.MatchType))
	if matchType == "" {
		matchType = models.MatchNone
	}
	return models.NameMatch{
		Input:          name,
		ScientificName: body.ScientificName,
		CanonicalName:  body.CanonicalName,
		Authorship:     strings.TrimSpace(body.Authorship),
		Rank:           body.Rank,
		Status:         body.Status,
		MatchType:      matchType,
		Confidence:     body.Confidence,
		UsageKey:       body.UsageKey,
	}, nil
}
