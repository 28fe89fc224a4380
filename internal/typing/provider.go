package typing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// FallbackText is used whenever the text provider is unreachable. A degraded
// passage is always preferred over a failed session start.
var FallbackText = strings.TrimSpace(strings.Repeat("the quick brown fox jumps over the lazy dog ", 20))

// TextProvider supplies typing passages of roughly wordCount words.
type TextProvider interface {
	Fetch(ctx context.Context, wordCount int) (string, error)
}

// Fetch asks provider for a passage and falls back to FallbackText on any
// failure, including a nil provider.
func Fetch(ctx context.Context, provider TextProvider, wordCount int) string {
	if provider == nil {
		return FallbackText
	}
	text, err := provider.Fetch(ctx, wordCount)
	if err != nil || text == "" {
		log.Warn().Err(err).Msg("text provider failed, using fallback passage")
		return FallbackText
	}
	return text
}

// HTTPProvider fetches passages from the coordinator's text endpoint.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPProvider returns a provider for baseURL (scheme://host[:port]).
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch calls GET /api/text?words=N and returns the passage.
func (p *HTTPProvider) Fetch(ctx context.Context, wordCount int) (string, error) {
	u := fmt.Sprintf("%s/api/text?%s", p.BaseURL, url.Values{"words": {fmt.Sprint(wordCount)}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("text endpoint returned %s", resp.Status)
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Text, nil
}
