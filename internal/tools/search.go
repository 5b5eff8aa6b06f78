package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ashureev/agentchat/internal/llm"
	"golang.org/x/net/html"
)

const noSearchResult = "No good DuckDuckGo Search Result was found"

// SearchTool queries the DuckDuckGo HTML endpoint and returns result snippets.
type SearchTool struct {
	endpoint   string
	maxResults int
	client     *http.Client
}

// NewSearchTool returns a SearchTool. A nil client uses http.DefaultClient.
func NewSearchTool(endpoint string, maxResults int, client *http.Client) *SearchTool {
	if endpoint == "" {
		endpoint = "https://html.duckduckgo.com/html/"
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SearchTool{endpoint: endpoint, maxResults: maxResults, client: client}
}

func (t *SearchTool) Name() string { return "search_tool" }

func (t *SearchTool) Description() string { return "Search the web for information" }

func (t *SearchTool) Definition() llm.ToolDef {
	return definition(t.Name(), t.Description(), map[string]any{
		"query": stringParam("Search terms"),
	}, "query")
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := decodeQuery(args)
	if err != nil {
		return "", err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return noSearchResult, nil
	}

	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Lynx/2.8.9rel.1 libwww-FM/2.14")
	req.Header.Set("Accept", "text/html")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("duckduckgo search failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("duckduckgo search error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read duckduckgo response: %w", err)
	}

	snippets := parseSnippets(string(body), t.maxResults)
	if len(snippets) == 0 {
		return noSearchResult, nil
	}
	return strings.Join(snippets, " "), nil
}

// parseSnippets collects the text of elements whose class includes result__snippet.
func parseSnippets(doc string, limit int) []string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil
	}

	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result__snippet") {
			if text := strings.Join(strings.Fields(nodeText(n)), " "); text != "" {
				out = append(out, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
