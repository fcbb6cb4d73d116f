// Package simclient fetches dashboard data from the simulation server's HTTP API.
package simclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rewired-gh/marketstate/internal/models"
)

// Backend endpoints, all GET.
const (
	PathNextStep       = "/ui/next_step"
	PathCurrentST      = "/ui/current_st"
	PathBalances       = "/account/balances"
	PathParticipantMap = "/ui/participant_map"
	PathDemand         = "/system/demand"
	PathAuctionResults = "/ui/auction/results"
	PathOpenAuctions   = "/market/auction/open"
)

const maxBodyBytes = 8 << 20

// ClientConfig holds retry and connection pool settings.
type ClientConfig struct {
	MaxRetries          int
	RetryDelayBase      time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Client provides access to the simulation server API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new client for the server at baseURL, e.g. http://localhost:8000.
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = cfg.IdleConnTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NextStep returns the seconds until the server processes the next step, or
// models.PausedSentinel while paused.
func (c *Client) NextStep(ctx context.Context) (float64, error) {
	return c.fetchNumber(ctx, PathNextStep)
}

// CurrentSimulationTime returns the simulated seconds processed so far.
func (c *Client) CurrentSimulationTime(ctx context.Context) (float64, error) {
	return c.fetchNumber(ctx, PathCurrentST)
}

// Balances returns account balances in server order.
func (c *Client) Balances(ctx context.Context) (models.Balances, error) {
	body, err := c.get(ctx, PathBalances)
	if err != nil {
		return nil, err
	}
	b, err := models.DecodeBalances(body)
	if err != nil {
		return nil, decodeError(PathBalances, err)
	}
	return b, nil
}

// ParticipantMap returns the actor to participant mapping.
func (c *Client) ParticipantMap(ctx context.Context) (models.ParticipantMap, error) {
	body, err := c.get(ctx, PathParticipantMap)
	if err != nil {
		return models.ParticipantMap{}, err
	}
	pm, err := models.DecodeParticipantMap(body)
	if err != nil {
		return models.ParticipantMap{}, decodeError(PathParticipantMap, err)
	}
	return pm, nil
}

// Demand returns the system demand series.
func (c *Client) Demand(ctx context.Context) (models.DemandSeries, error) {
	body, err := c.get(ctx, PathDemand)
	if err != nil {
		return models.DemandSeries{}, err
	}
	d, err := models.ParseDemand(body)
	if err != nil {
		return models.DemandSeries{}, decodeError(PathDemand, err)
	}
	return d, nil
}

// AuctionResults returns cleared auctions, oldest first.
func (c *Client) AuctionResults(ctx context.Context) ([]models.AuctionResult, error) {
	body, err := c.get(ctx, PathAuctionResults)
	if err != nil {
		return nil, err
	}
	results, err := models.DecodeAuctionResults(body)
	if err != nil {
		return nil, decodeError(PathAuctionResults, err)
	}
	return results, nil
}

// OpenAuctions returns auctions still accepting orders, soonest first.
func (c *Client) OpenAuctions(ctx context.Context) ([]models.AuctionParams, error) {
	body, err := c.get(ctx, PathOpenAuctions)
	if err != nil {
		return nil, err
	}
	auctions, err := models.DecodeOpenAuctions(body)
	if err != nil {
		return nil, decodeError(PathOpenAuctions, err)
	}
	return auctions, nil
}

func (c *Client) fetchNumber(ctx context.Context, path string) (float64, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return 0, err
	}
	v, err := models.ParseNumber(string(body))
	if err != nil {
		return 0, decodeError(path, err)
	}
	return v, nil
}

// get performs a GET with linear-backoff retry on transport failures and 5xx.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	urlStr := c.baseURL + path
	var lastErr error
	attempts := 0

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, &FetchError{Endpoint: path, Kind: KindTransport, Err: ctx.Err()}
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		attempts++
		body, retry, err := c.doRequest(ctx, urlStr)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}

	if attempts > 1 {
		lastErr = fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
	}
	return nil, &FetchError{Endpoint: path, Kind: KindTransport, Err: lastErr}
}

func (c *Client) doRequest(ctx context.Context, urlStr string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, resp.StatusCode >= 500, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read body: %w", err)
	}
	return body, false, nil
}
