package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
)

// HTTPExtractor pulls the submission's own text out of a thread page using
// trafilatura. Comment markup is deliberately excluded; comments are handled
// by the page scanner, this extractor only cares about the post body.
type HTTPExtractor struct {
	timeout   time.Duration
	minLength int
	client    *http.Client
}

// NewHTTPExtractor creates a submission body extractor. Extracted text
// shorter than minLength is treated as no content.
func NewHTTPExtractor(timeout time.Duration, minLength int) *HTTPExtractor {
	return &HTTPExtractor{
		timeout:   timeout,
		minLength: minLength,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Extract retrieves the page and extracts the submission text
func (e *HTTPExtractor) Extract(ctx context.Context, urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Slopscope/1.0)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, urlStr)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   false,
		IncludeImages:   false,
		IncludeLinks:    false,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	result, err := trafilatura.Extract(resp.Body, opts)
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", urlStr, err)
	}

	if result == nil {
		return "", fmt.Errorf("no content extracted from %s", urlStr)
	}

	content := strings.TrimSpace(result.ContentText)
	if content == "" {
		return "", fmt.Errorf("no text content extracted from %s", urlStr)
	}
	if len(content) < e.minLength {
		return "", fmt.Errorf("extracted text from %s too short: %d chars", urlStr, len(content))
	}

	return content, nil
}
