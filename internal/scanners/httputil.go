package scanners

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const probeUserAgent = "Mozilla/5.0 (compatible; bugbounty-framework/2.0)"

// probeResult is one HTTP liveness check outcome
type probeResult struct {
	URL        string
	StatusCode int
	Title      string
	Alive      bool
}

// probeURL performs a GET against rawURL and extracts the page title. Any
// transport error reports a dead host rather than failing the scan.
func probeURL(ctx context.Context, client *http.Client, rawURL string) probeResult {
	result := probeResult{URL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return result
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Alive = true

	// Bounded read; titles live near the top of the document
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return result
	}
	result.Title = extractTitle(string(body))
	return result
}

// extractTitle pulls the first <title> text out of an HTML document
func extractTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// fetchBody GETs rawURL and returns up to maxBytes of the response body
func fetchBody(ctx context.Context, client *http.Client, rawURL string, maxBytes int64) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}
