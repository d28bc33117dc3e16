package bocha

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"debate-backend/internal/search"
	"debate-backend/internal/shared/telemetry"
)

const (
	defaultBaseURL = "https://api.bochaai.com"
	resultCap      = 10
)

// Client implements search.Searcher against the Bocha Web Search API.
type Client struct {
	client *resty.Client
	apiKey string
}

// NewClient constructs a Bocha search client.
func NewClient(apiKey, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(30 * time.Second)

	return &Client{
		client: client,
		apiKey: apiKey,
	}
}

type webSearchRequest struct {
	Query     string `json:"query"`
	Freshness string `json:"freshness"`
	Summary   bool   `json:"summary"`
	Count     int    `json:"count"`
}

type webSearchResponse struct {
	Data struct {
		WebPages struct {
			Value []struct {
				Name          string `json:"name"`
				URL           string `json:"url"`
				Snippet       string `json:"snippet"`
				Summary       string `json:"summary"`
				DatePublished string `json:"datePublished"`
			} `json:"value"`
		} `json:"webPages"`
	} `json:"data"`
}

// Search issues one web-search request. Transport or provider failure degrades
// to a placeholder result; search unavailability must not abort the caller.
func (c *Client) Search(ctx context.Context, query string) (search.Result, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(webSearchRequest{
			Query:     query,
			Freshness: "oneDay",
			Summary:   true,
			Count:     resultCap,
		}).
		Post("/v1/web-search")
	if err != nil {
		telemetry.Warn("search.degraded", map[string]any{"query": query, "error": err.Error()})
		return search.Degraded(), nil
	}
	if resp.StatusCode() != 200 {
		telemetry.Warn("search.degraded", map[string]any{
			"query":  query,
			"status": resp.StatusCode(),
			"body":   truncate(resp.String(), 500),
		})
		return search.Degraded(), nil
	}

	var parsed webSearchResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		telemetry.Warn("search.degraded", map[string]any{"query": query, "error": fmt.Sprintf("parse response: %v", err)})
		return search.Degraded(), nil
	}

	return parseResult(parsed), nil
}

// Snippets often carry quotes like "当前: 贵州茅台 (600519) ... 1447.30 -0.13%".
var priceRe = regexp.MustCompile(`(\d+\.\d+)\s*[\-+]?\d+\.\d+%?`)

func parseResult(parsed webSearchResponse) search.Result {
	result := search.Result{Pages: []search.Page{}}

	for _, p := range parsed.Data.WebPages.Value {
		snippet := p.Snippet
		if snippet == "" {
			snippet = p.Summary
		}
		result.Pages = append(result.Pages, search.Page{
			Title:   p.Name,
			URL:     p.URL,
			Snippet: snippet,
			Date:    p.DatePublished,
		})

		if result.Quote == nil {
			text := strings.Join(strings.Fields(p.Name+" "+snippet), " ")
			if m := priceRe.FindStringSubmatch(text); m != nil {
				result.Quote = &search.QuoteExtract{
					Price:         m[1],
					SnippetSource: snippet,
				}
			}
		}
	}

	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ search.Searcher = (*Client)(nil)
