// Package scraper collects song lyrics from Letras-style lyric sites.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const DefaultBaseURL = "https://www.letras.mus.br"

// ErrPageNotFound marks a page the site served as a soft 404.
var ErrPageNotFound = errors.New("page not found")

// defaultHeaders make requests look like a regular browser.
var defaultHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language":           "pt-BR,pt;q=0.9,en;q=0.8",
	"Upgrade-Insecure-Requests": "1",
}

// ClientConfig contains fetch configuration
type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultClientConfig returns the polite defaults: 30s timeout and a random
// 1-3s pause before every request.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:  DefaultBaseURL,
		Timeout:  30 * time.Second,
		MinDelay: time.Second,
		MaxDelay: 3 * time.Second,
	}
}

// Client fetches and parses pages.
type Client struct {
	config     ClientConfig
	httpClient *http.Client

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClient creates a Client. A nil httpClient gets one with the configured
// timeout.
func NewClient(config ClientConfig, httpClient *http.Client) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.MaxDelay < config.MinDelay {
		config.MaxDelay = config.MinDelay
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// BaseURL returns the site root without a trailing slash.
func (c *Client) BaseURL() string { return c.config.BaseURL }

func (c *Client) delay() time.Duration {
	span := c.config.MaxDelay - c.config.MinDelay
	if span <= 0 {
		return c.config.MinDelay
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.MinDelay + time.Duration(c.rng.Int63n(int64(span)))
}

// Fetch waits the courtesy delay, downloads url and parses it. Non-2xx
// statuses are errors; a page announcing "página não encontrada" yields
// ErrPageNotFound.
func (c *Client) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if d := c.delay(); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error fetching %s: %s", url, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", url, err)
	}
	if strings.Contains(strings.ToLower(doc.Text()), "página não encontrada") {
		return nil, fmt.Errorf("%s: %w", url, ErrPageNotFound)
	}
	return doc, nil
}
