package fetch

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"

	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config tunes the HTTP client.
type Config struct {
	Timeout    time.Duration // per-request; default 30s
	RetryMax   int           // transport-level retries; default 2
	RatePerSec int           // outbound request pacing; default 1
	UserAgent  string
}

// Client fetches and parses product and category pages. It paces every
// request through a shared rate limiter: the target site throttles bursts
// from one source aggressively.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	} else if cfg.RetryMax == 0 {
		cfg.RetryMax = 2
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	hc := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryMax).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.5")

	return &Client{
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		log:     log,
	}
}

func (c *Client) Close() error { return c.http.Close() }

// FetchProduct retrieves one product page and extracts its embedded payload.
func (c *Client) FetchProduct(ctx context.Context, productURL string) (*watch.ProductSnapshot, error) {
	html, err := c.getHTML(ctx, productURL)
	if err != nil {
		return nil, err
	}

	snap, err := ExtractProduct(html)
	if err != nil {
		return nil, &Error{Kind: KindParse, URL: productURL, Err: err}
	}
	snap.URL = productURL
	return snap, nil
}

// ScrapeCategory lists the product tiles on a category page.
func (c *Client) ScrapeCategory(ctx context.Context, categoryURL string) ([]watch.CategoryTile, error) {
	html, err := c.getHTML(ctx, categoryURL)
	if err != nil {
		return nil, err
	}

	tiles, err := ParseCategoryHTML(html)
	if err != nil {
		return nil, &Error{Kind: KindParse, URL: categoryURL, Err: err}
	}
	for i := range tiles {
		tiles[i].ProductURL = ResolveURL(categoryURL, tiles[i].ProductURL)
	}
	return tiles, nil
}

func (c *Client) getHTML(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &Error{Kind: KindNetwork, URL: url, Err: err}
	}

	res, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", &Error{Kind: KindNetwork, URL: url, Err: err}
	}
	if res.IsError() {
		return "", classifyStatus(url, res.StatusCode())
	}
	return res.String(), nil
}

func classifyStatus(url string, status int) *Error {
	kind := KindHTTP
	switch {
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusTooManyRequests || status == http.StatusForbidden:
		// 403 usually means bot blocking here, which behaves like a rate
		// limit: back off and retry next cycle.
		kind = KindRateLimited
	}
	return &Error{Kind: kind, URL: url, Status: status, Msg: http.StatusText(status)}
}
