package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bjaus/gateway/dispatch"
)

// HTTPFetcher loads guild snapshots from a REST endpoint serving
// GET {BaseURL}/guilds/{id}.
type HTTPFetcher struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPFetcher returns a fetcher for cfg.
func NewHTTPFetcher(cfg FetchConfig) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchGuild implements dispatch.Fetcher.
func (f *HTTPFetcher) FetchGuild(ctx context.Context, guildID string) (*dispatch.Guild, error) {
	endpoint := f.BaseURL + "/guilds/" + url.PathEscape(guildID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.Token != "" {
		req.Header.Set("Authorization", "Bot "+f.Token)
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, dispatch.ErrNotFound)
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, dispatch.ErrForbidden)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch guild %s: unexpected status %d: %s",
			guildID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var g dispatch.Guild
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return nil, fmt.Errorf("fetch guild %s: decode: %w", guildID, err)
	}
	if g.ID == "" {
		g.ID = guildID
	}
	return &g, nil
}
