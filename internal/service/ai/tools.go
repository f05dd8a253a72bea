package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"vidgenius/internal/config"
)

// WebSearchHTTPTimeout bounds every outbound request made by the tool.
const WebSearchHTTPTimeout = 10 * time.Second

var errNoSearchResult = errors.New("no search provider succeeded")

// InitToolsChain returns the tools handed to the agent; empty when web search is off.
func InitToolsChain(webSearch bool, search config.SearchConfig, logger *zap.Logger) []tool.BaseTool {
	if !webSearch {
		return nil
	}
	var tools []tool.BaseTool
	if ws := InitWebSearch(search, logger); ws != nil {
		tools = append(tools, ws)
	}
	return tools
}

// InitWebSearch builds the web_search tool from every provider that could be
// initialised, in preference order.
func InitWebSearch(search config.SearchConfig, logger *zap.Logger) tool.InvokableTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	var providers []searchProvider
	if g := InitGooglesearch(search, logger); g != nil {
		providers = append(providers, searchProvider{name: "google", tool: g})
	}
	if d := InitDDGsearch(search, logger); d != nil {
		providers = append(providers, searchProvider{name: "duckduckgo", tool: d})
	}
	if len(providers) == 0 {
		logger.Warn("web search tool disabled: no search providers available")
		return nil
	}
	return newWebSearchTool(providers, logger)
}

// searchProvider is one backend of the web_search tool.
type searchProvider struct {
	name string
	tool tool.InvokableTool
}

type webSearchTool struct {
	providers []searchProvider
	pages     *pageFetcher
	logger    *zap.Logger
}

type webSearchParams struct {
	Query string `json:"query"`
}

func newWebSearchTool(providers []searchProvider, logger *zap.Logger) tool.InvokableTool {
	ws := &webSearchTool{
		providers: providers,
		pages:     newPageFetcher(&http.Client{Timeout: WebSearchHTTPTimeout}),
		logger:    logger,
	}

	info := &schema.ToolInfo{
		Name: "web_search",
		Desc: "Look up platform rules and editing conventions on the web, such as maximum clip length, " +
			"aspect ratios or caption norms. Pass an http(s) URL to read that page instead.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Search query, or a URL to read",
				Type:     schema.String,
				Required: true,
			},
		}),
	}

	return utils.NewTool(info, ws.run)
}

// run reads the page when the query is a URL, then tries each provider in
// order and returns the first answer.
func (w *webSearchTool) run(ctx context.Context, params *webSearchParams) (string, error) {
	if params == nil || strings.TrimSpace(params.Query) == "" {
		return "", errors.New("query must not be empty")
	}
	query := strings.TrimSpace(params.Query)

	if w.pages != nil && looksLikeURL(query) {
		page, err := w.pages.fetch(ctx, query)
		if err == nil {
			return page, nil
		}
		w.logger.Debug("page fetch failed, searching instead", zap.String("url", query), zap.Error(err))
	}

	args, err := json.Marshal(webSearchParams{Query: query})
	if err != nil {
		return "", fmt.Errorf("encode search query: %w", err)
	}

	errs := make([]error, 0, len(w.providers))
	for _, p := range w.providers {
		out, err := p.tool.InvokableRun(ctx, string(args))
		if err == nil {
			return out, nil
		}
		w.logger.Debug("search provider failed", zap.String("provider", p.name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
	}
	return "", errors.Join(append([]error{errNoSearchResult}, errs...)...)
}

// InitDDGsearch needs no credentials; nil when the client cannot be built.
func InitDDGsearch(search config.SearchConfig, logger *zap.Logger) tool.InvokableTool {
	duckTool, err := duckduckgo.NewTextSearchTool(context.Background(), &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo text search",
		MaxResults: search.MaxResults,
		Region:     duckduckgo.RegionWT,
		Timeout:    WebSearchHTTPTimeout,
	})
	if err != nil {
		logger.Warn("duckduckgo search disabled", zap.Error(err))
		return nil
	}
	return duckTool
}

// InitGooglesearch returns nil unless both the API key and the engine id are set.
func InitGooglesearch(search config.SearchConfig, logger *zap.Logger) tool.InvokableTool {
	if search.GoogleAPIKey == "" || search.GoogleEngineID == "" {
		logger.Debug("google search disabled: api key or engine id missing")
		return nil
	}
	googleTool, err := googlesearch.NewTool(context.Background(), &googlesearch.Config{
		ToolName:       "web_search_google",
		ToolDesc:       "Google Custom Search",
		APIKey:         search.GoogleAPIKey,
		SearchEngineID: search.GoogleEngineID,
		Lang:           "en",
		Num:            search.MaxResults,
	})
	if err != nil {
		logger.Warn("google search disabled", zap.Error(err))
		return nil
	}
	return googleTool
}
