// Package fetch retrieves the publication page that carries the titer
// table. The source is a DOI resolver link, so the client follows the
// redirect chain to the publisher and records where it landed.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// Client fetches a single page with one blocking GET.
type Client struct {
	userAgent string
	timeout   time.Duration
}

// NewClient creates a page fetcher. A zero timeout leaves the transport
// default in place.
func NewClient(userAgent string, timeout time.Duration) *Client {
	return &Client{
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Page is the fetched source document.
type Page struct {
	URL        string        `json:"url"`
	FinalURL   string        `json:"final_url,omitempty"`
	Title      string        `json:"title,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	HTML       []byte        `json:"-"`
}

// Fetch retrieves pageURL. There is no retry: a failed fetch terminates
// the run, since the analysis is meaningless without the source document.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	start := time.Now()

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "https"
	}

	page := &Page{URL: pageURL}
	var fetchErr error

	collector := colly.NewCollector(
		colly.UserAgent(c.userAgent),
		colly.MaxDepth(1),
	)
	if c.timeout > 0 {
		collector.SetRequestTimeout(c.timeout)
	}

	collector.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
			fetchErr = ctx.Err()
		default:
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.HTML = r.Body
		if r.Request != nil && r.Request.URL != nil {
			page.FinalURL = r.Request.URL.String()
		}
	})

	collector.OnHTML("title", func(e *colly.HTMLElement) {
		page.Title = strings.TrimSpace(e.Text)
	})

	collector.OnError(func(r *colly.Response, _ error) {
		if fetchErr == nil && r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("HTTP %d: %w", r.StatusCode, ErrBadStatus)
		}
	})

	visitErr := collector.Visit(parsedURL.String())

	if fetchErr != nil {
		return nil, fetchErr
	}
	if visitErr != nil {
		return nil, fmt.Errorf("failed to visit URL: %w", visitErr)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	page.Latency = time.Since(start)
	return page, nil
}

// FromFile loads a previously captured document from disk, for offline
// runs against a saved copy of the source page.
func FromFile(path string) (*Page, error) {
	// #nosec G304 - reads the user-supplied offline input document
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return &Page{
		URL:      path,
		FinalURL: path,
		HTML:     data,
	}, nil
}
