package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TavilyName is the identifier the model uses to request a web search.
const TavilyName = "Tavily_Search"

const defaultTavilyBaseURL = "https://api.tavily.com"

// TavilyOption configures the Tavily search tool.
type TavilyOption func(*Tavily)

// WithTavilyBaseURL overrides the Tavily API base URL.
func WithTavilyBaseURL(url string) TavilyOption {
	return func(t *Tavily) {
		t.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTavilyHTTPClient sets a custom HTTP client.
func WithTavilyHTTPClient(c *http.Client) TavilyOption {
	return func(t *Tavily) {
		t.client = c
	}
}

// WithTavilyMaxResults limits the number of search results requested.
// Default is 5.
func WithTavilyMaxResults(n int) TavilyOption {
	return func(t *Tavily) {
		t.maxResults = n
	}
}

// Tavily searches the web through the Tavily API. It holds no per-call
// state beyond its connection pool and is safe for concurrent use.
type Tavily struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	maxResults int
}

// NewTavily creates a Tavily web search tool with the given API key.
func NewTavily(apiKey string, opts ...TavilyOption) *Tavily {
	t := &Tavily{
		apiKey:     apiKey,
		baseURL:    defaultTavilyBaseURL,
		maxResults: 5,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 15 * time.Second}
	}
	return t
}

// Name implements Tool.
func (t *Tavily) Name() string { return TavilyName }

// DisplayName implements Tool.
func (t *Tavily) DisplayName() string { return "Web Search" }

// Description implements Tool.
func (t *Tavily) Description() string {
	return "Search the web for current information, news, and recent events"
}

// Call searches the web for the given query. Backend failures are
// converted into a failed Result, never propagated.
func (t *Tavily) Call(ctx context.Context, input string) Result {
	resp, err := t.search(ctx, input)
	if err != nil {
		return Failure("Web search unavailable (API error: " + err.Error() + ")")
	}
	return Result{Success: true, Payload: formatSearchResults(input, resp)}
}

type tavilySearchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilySearchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (t *Tavily) search(ctx context.Context, query string) (*tavilySearchResponse, error) {
	body, err := json.Marshal(tavilySearchRequest{
		APIKey:        t.apiKey,
		Query:         query,
		MaxResults:    t.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed tavilySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("tavily: decoding response: %w", err)
	}
	return &parsed, nil
}

// formatSearchResults renders search results into a natural-language block
// suitable for re-injection into the model context.
func formatSearchResults(query string, resp *tavilySearchResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search Results for %q:\n\n", query)

	if resp.Answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n\n", resp.Answer)
	}

	if len(resp.Results) == 0 {
		b.WriteString("No results found.")
		return b.String()
	}

	b.WriteString("Top Results:\n")
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   URL: %s\n", r.URL)
		fmt.Fprintf(&b, "   %s\n", r.Content)
	}
	return b.String()
}
