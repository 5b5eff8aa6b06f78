package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ashureev/agentchat/internal/llm"
)

const noWikiResult = "No good Wikipedia Search Result was found"

// WikiTool searches Wikipedia and returns the introductions of the top pages.
type WikiTool struct {
	baseURL  string
	topK     int
	maxChars int
	client   *http.Client
}

// NewWikiTool returns a WikiTool for the MediaWiki site at baseURL.
func NewWikiTool(baseURL string, topK, maxChars int, client *http.Client) *WikiTool {
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org"
	}
	if topK <= 0 {
		topK = 3
	}
	if maxChars <= 0 {
		maxChars = 500
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WikiTool{baseURL: strings.TrimRight(baseURL, "/"), topK: topK, maxChars: maxChars, client: client}
}

func (t *WikiTool) Name() string { return "wikipedia" }

func (t *WikiTool) Description() string {
	return "Look up encyclopedic summaries on Wikipedia"
}

func (t *WikiTool) Definition() llm.ToolDef {
	return definition(t.Name(), t.Description(), map[string]any{
		"query": stringParam("Topic to look up"),
	}, "query")
}

type wikiResponse struct {
	Query struct {
		Pages map[string]struct {
			Index   int    `json:"index"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

type wikiPage struct {
	index   int
	title   string
	extract string
}

func (t *WikiTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := decodeQuery(args)
	if err != nil {
		return "", err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return noWikiResult, nil
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", strconv.Itoa(t.topK))
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exlimit", "max")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "agentchat/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wikipedia search failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wikipedia search error: status %d", resp.StatusCode)
	}

	var body wikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode wikipedia response: %w", err)
	}

	pages := make([]wikiPage, 0, len(body.Query.Pages))
	for _, p := range body.Query.Pages {
		pages = append(pages, wikiPage{index: p.Index, title: p.Title, extract: strings.TrimSpace(p.Extract)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].index < pages[j].index })

	var parts []string
	for _, p := range pages {
		if len(parts) == t.topK {
			break
		}
		parts = append(parts, fmt.Sprintf("Page: %s\nSummary: %s", p.title, p.extract))
	}
	if len(parts) == 0 {
		return noWikiResult, nil
	}
	return truncateRunes(strings.Join(parts, "\n\n"), t.maxChars), nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
