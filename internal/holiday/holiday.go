// Package holiday talks to the external holiday data provider and
// deduplicates what it returns before the results reach the renderer.
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"calwidget/internal/model"
)

// Holiday is one holiday entry as delivered to the renderer.
type Holiday struct {
	StartDate model.Date `json:"startDate"`
	EndDate   model.Date `json:"endDate"`
	Title     string     `json:"title"`
}

// Provider looks up holidays for a window and region.
type Provider interface {
	Fetch(ctx context.Context, win model.TimeWindow, country, language, subdivision string) ([]Holiday, error)
}

// HTTPProvider queries a JSON endpoint with from/to/country/language query
// parameters. Responses are deduplicated by (start, end, title).
type HTTPProvider struct {
	Endpoint string
	Client   *http.Client
}

func (p *HTTPProvider) Fetch(ctx context.Context, win model.TimeWindow, country, language, subdivision string) ([]Holiday, error) {
	params := url.Values{}
	params.Set("from", win.Start.String())
	params.Set("to", win.End.String())
	params.Set("country", country)
	if language != "" {
		params.Set("language", language)
	}
	if subdivision != "" {
		params.Set("subdivision", subdivision)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday request failed: %s", resp.Status)
	}

	var holidays []Holiday
	if err := json.NewDecoder(resp.Body).Decode(&holidays); err != nil {
		return nil, fmt.Errorf("decoding holiday response: %w", err)
	}
	return Dedupe(holidays), nil
}

// Dedupe removes entries sharing (start, end, title), keeping first
// occurrences in order.
func Dedupe(in []Holiday) []Holiday {
	type key struct {
		start, end model.Date
		title      string
	}
	seen := make(map[key]bool, len(in))
	out := make([]Holiday, 0, len(in))
	for _, h := range in {
		k := key{h.StartDate, h.EndDate, h.Title}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, h)
	}
	return out
}
