package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// TrendsName is the identifier the model uses to request trending topics.
const TrendsName = "Google_Trends_MCP"

const maxTrendEntries = 10

// TrendsOption configures the trends tool.
type TrendsOption func(*Trends)

// WithTrendsGeo sets the geographic region for trend lookups.
// Default is "US".
func WithTrendsGeo(geo string) TrendsOption {
	return func(t *Trends) {
		t.geo = geo
	}
}

// Trends fetches trending search terms from a Google News Trends MCP
// server. The MCP session is established lazily on first use and reused
// across calls; a failed session is dropped so the next call reconnects.
type Trends struct {
	url string
	geo string

	mu     sync.Mutex
	client *mcpclient.Client
}

// NewTrends creates a trends tool backed by the MCP server at url.
func NewTrends(url string, opts ...TrendsOption) *Trends {
	t := &Trends{url: url, geo: "US"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Tool.
func (t *Trends) Name() string { return TrendsName }

// DisplayName implements Tool.
func (t *Trends) DisplayName() string { return "Google Trends" }

// Description implements Tool.
func (t *Trends) Description() string {
	return "Get trending topics and popular searches"
}

// Call fetches current trending terms. The model's input is ignored: the
// MCP tool takes only a region, which is fixed per deployment. Backend
// failures are converted into a failed Result, never propagated.
func (t *Trends) Call(ctx context.Context, _ string) Result {
	res, err := t.callTool(ctx, "get_trending_terms", map[string]any{
		"geo":       t.geo,
		"full_data": false,
	})
	if err != nil {
		return Failure("Trends service unavailable (API error: " + err.Error() + ")")
	}
	return Result{Success: true, Payload: formatTrends(t.geo, res)}
}

// HealthCheck pings the MCP server. Used by the transport's health endpoint.
func (t *Trends) HealthCheck(ctx context.Context) error {
	c, err := t.session(ctx)
	if err != nil {
		return err
	}
	if err := c.Ping(ctx); err != nil {
		t.dropSession(c)
		return err
	}
	return nil
}

// Close tears down the MCP session if one is open.
func (t *Trends) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *Trends) callTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	c, err := t.session(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		t.dropSession(c)
		return nil, err
	}
	if res.IsError {
		return nil, fmt.Errorf("mcp: %s reported an error: %s", name, textContent(res))
	}
	return res, nil
}

func (t *Trends) session(ctx context.Context) (*mcpclient.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}

	c, err := mcpclient.NewStreamableHttpClient(t.url)
	if err != nil {
		return nil, fmt.Errorf("mcp: creating client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp: starting client: %w", err)
	}

	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "pulsechat",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("mcp: initializing session: %w", err)
	}

	t.client = c
	return c, nil
}

func (t *Trends) dropSession(c *mcpclient.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == c {
		t.client.Close()
		t.client = nil
	}
}

type trendEntry struct {
	Keyword string `json:"keyword"`
	Volume  int64  `json:"volume"`
}

// formatTrends renders trending terms into a ranked keyword/volume block
// for re-injection into the model context.
func formatTrends(geo string, res *mcp.CallToolResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Google Trends (%s):\n\n", geo)

	entries := parseTrendEntries(res)
	if len(entries) == 0 {
		raw := strings.TrimSpace(textContent(res))
		if raw == "" {
			b.WriteString("No trends data available.")
			return b.String()
		}
		b.WriteString(raw)
		return b.String()
	}

	if len(entries) > maxTrendEntries {
		entries = entries[:maxTrendEntries]
	}
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s (Volume: %d)\n", i+1, e.Keyword, e.Volume)
	}
	return b.String()
}

// parseTrendEntries extracts keyword/volume pairs from structured content
// or from JSON-encoded text blocks. Returns nil if neither parses.
func parseTrendEntries(res *mcp.CallToolResult) []trendEntry {
	if res.StructuredContent != nil {
		if raw, err := json.Marshal(res.StructuredContent); err == nil {
			if entries := unmarshalTrendEntries(raw); entries != nil {
				return entries
			}
		}
	}
	if entries := unmarshalTrendEntries([]byte(textContent(res))); entries != nil {
		return entries
	}
	return nil
}

func unmarshalTrendEntries(raw []byte) []trendEntry {
	var entries []trendEntry
	if err := json.Unmarshal(raw, &entries); err == nil && len(entries) > 0 {
		return entries
	}

	var wrapped struct {
		Result []trendEntry `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Result) > 0 {
		return wrapped.Result
	}
	return nil
}

// textContent concatenates the text blocks of an MCP tool result.
func textContent(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		switch content := c.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
