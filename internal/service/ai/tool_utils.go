package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxPageBytes caps how much of a fetched page is handed to the model.
const maxPageBytes = 512 << 10

// pageFetcher reads a web page the model asked for by URL.
type pageFetcher struct {
	client    *http.Client
	userAgent string
}

func newPageFetcher(client *http.Client) *pageFetcher {
	if client == nil {
		client = &http.Client{Timeout: WebSearchHTTPTimeout}
	}
	return &pageFetcher{client: client, userAgent: "VidGenius-WebSearch/1.0"}
}

func (p *pageFetcher) fetch(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: %s", u.Host, resp.Status)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, io.LimitReader(resp.Body, maxPageBytes)); err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return sb.String(), nil
}

func looksLikeURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
