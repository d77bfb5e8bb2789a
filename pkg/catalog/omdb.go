package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nimburion/movieship/pkg/observability/logger"
	"github.com/nimburion/movieship/pkg/observability/tracing"
	"github.com/nimburion/movieship/pkg/resilience"
	"golang.org/x/time/rate"
)

// DefaultOMDbURL is the public OMDb API endpoint.
const DefaultOMDbURL = "https://www.omdbapi.com/"

// OMDbConfig configures an OMDbClient.
type OMDbConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each lookup, including the wait for a rate-limit token.
	Timeout time.Duration
	// RatePerSecond caps outbound lookups. Zero or less disables the limit.
	RatePerSecond float64
	// MaxFailures consecutive failed lookups open the circuit for ResetTimeout.
	MaxFailures  int
	ResetTimeout time.Duration
	// UserAgent is sent with every lookup when set.
	UserAgent string
}

// OMDbOption customizes an OMDbClient.
type OMDbOption func(*OMDbClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OMDbOption {
	return func(o *OMDbClient) {
		if c != nil {
			o.http = c
		}
	}
}

// OMDbClient is a PosterSource backed by the OMDb API.
type OMDbClient struct {
	endpoint *url.URL
	apiKey   string
	agent    string
	timeout  time.Duration
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *resilience.CircuitBreaker
	logger   logger.Logger
}

var _ PosterSource = (*OMDbClient)(nil)

type omdbResponse struct {
	Poster   string `json:"Poster"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// NewOMDbClient validates cfg and creates a client.
func NewOMDbClient(cfg OMDbConfig, log logger.Logger, opts ...OMDbOption) (*OMDbClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("omdb api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOMDbURL
	}
	endpoint, err := url.Parse(cfg.BaseURL)
	if err != nil || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid omdb base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		if cfg.RatePerSecond > 1 {
			burst = int(cfg.RatePerSecond)
		}
	}

	log = log.With("component", "omdb")
	c := &OMDbClient{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		agent:    cfg.UserAgent,
		timeout:  cfg.Timeout,
		http:     &http.Client{},
		limiter:  rate.NewLimiter(limit, burst),
		logger:   log,
	}
	c.breaker = resilience.NewCircuitBreaker(
		resilience.BreakerConfig{Name: "omdb", MaxFailures: cfg.MaxFailures, ResetTimeout: cfg.ResetTimeout},
		resilience.WithStateChange(func(name string, from, to resilience.State) {
			log.Warn("poster provider circuit changed state", "breaker", name, "from", from.String(), "to", to.String())
		}),
	)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Poster implements PosterSource. A provider-side error for the title is reported as
// ErrPosterUnavailable and does not count against the circuit breaker.
func (c *OMDbClient) Poster(ctx context.Context, imdbID string) (string, error) {
	var body omdbResponse
	err := resilience.WithTimeout(ctx, c.timeout, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			body, err = c.fetch(ctx, imdbID)
			return err
		})
	})
	if err != nil {
		return "", err
	}
	if body.Error != "" {
		return "", fmt.Errorf("%w: %s: %s", ErrPosterUnavailable, imdbID, body.Error)
	}
	return body.Poster, nil
}

func (c *OMDbClient) fetch(ctx context.Context, imdbID string) (body omdbResponse, err error) {
	ctx, span := tracing.StartHTTPClientSpan(ctx, tracing.SpanOperationHTTPGet, c.endpoint.Host)
	defer func() { tracing.End(span, err) }()

	target := *c.endpoint
	params := target.Query()
	params.Set("apikey", c.apiKey)
	params.Set("i", imdbID)
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return body, err
	}
	req.Header.Set("Accept", "application/json")
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return body, fmt.Errorf("omdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("omdb request: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return body, fmt.Errorf("omdb response: %w", err)
	}
	c.logger.Debug("poster looked up", "imdb_id", imdbID, "found", body.Error == "")
	return body, nil
}
