package scraper

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/leapunion/visibility/pkg/content"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FirecrawlClient calls the self-hosted render service's scrape endpoint.
// A circuit breaker fails fast once the service is clearly down so retries
// do not pile 30 second timeouts on top of each other.
type FirecrawlClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Data struct {
		Markdown string `json:"markdown"`
		Content  string `json:"content"`
		Metadata struct {
			StatusCode *int `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

func NewFirecrawlClient(cfg *Config) *FirecrawlClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "firecrawl",
		Timeout: cfg.BreakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerMaxFailures)
		},
	})

	return &FirecrawlClient{
		baseURL: cfg.FirecrawlURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		breaker: breaker,
	}
}

// Scrape renders url and returns the raw markdown payload. The returned
// StatusCode is the upstream page's status as reported by the render
// service, defaulting to 200 when absent.
func (c *FirecrawlClient) Scrape(ctx context.Context, url string) (content.RawScrape, error) {
	start := time.Now()

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doScrape(ctx, url)
	})
	if err != nil {
		return content.RawScrape{}, err
	}

	resp := raw.(scrapeResponse)
	text := resp.Data.Markdown
	if text == "" {
		text = resp.Data.Content
	}
	statusCode := 200
	if resp.Data.Metadata.StatusCode != nil {
		statusCode = *resp.Data.Metadata.StatusCode
	}

	return content.RawScrape{
		URL:              url,
		Content:          text,
		StatusCode:       statusCode,
		ContentLength:    len(text),
		ScrapeDurationMS: time.Since(start).Milliseconds(),
		ScrapedAt:        time.Now().UTC(),
	}, nil
}

func (c *FirecrawlClient) doScrape(ctx context.Context, url string) (scrapeResponse, error) {
	body, err := json.Marshal(scrapeRequest{URL: url, Formats: []string{"markdown"}})
	if err != nil {
		return scrapeResponse{}, errors.Wrap(err, "encoding scrape request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return scrapeResponse{}, errors.Wrap(err, "building scrape request")
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return scrapeResponse{}, errors.Wrap(err, "calling render service")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(httpResp.Body, 1024))
		return scrapeResponse{}, errors.Errorf("render service returned %d", httpResp.StatusCode)
	}

	var resp scrapeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return scrapeResponse{}, errors.Wrap(err, "decoding scrape response")
	}
	return resp, nil
}
