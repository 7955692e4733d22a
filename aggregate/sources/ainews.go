package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate"
)

var errNoAPIKey = errors.New("sources: news api key not configured")

// newsAPIResponse is the subset of the NewsAPI /v2/everything response
// the dashboard needs.
type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// searchNewsAPI runs one NewsAPI everything query.
func (c *Client) searchNewsAPI(ctx context.Context, query string) ([]aggregate.ContentItem, error) {
	if c.cfg.NewsAPIKey == "" {
		return nil, errNoAPIKey
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", "30")
	q.Set("apiKey", c.cfg.NewsAPIKey)

	var resp newsAPIResponse
	if err := c.getJSON(ctx, c.cfg.NewsAPIBase+"/everything?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("sources: news api status %q: %s", resp.Status, resp.Message)
	}

	items := make([]aggregate.ContentItem, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		title := cleanTitle(a.Title)
		if title == "" || a.URL == "" {
			continue
		}
		item := aggregate.ContentItem{
			Title:       title,
			URL:         a.URL,
			SourceLabel: "newsapi",
		}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			item.PublishedAt = t.UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

// googleNewsSearch builds a Google News RSS search URL for query,
// restricted to the last day so the feed tracks the news cycle.
func (c *Client) googleNewsSearch(query string) string {
	q := url.Values{}
	q.Set("q", query+" when:1d")
	q.Set("hl", "en-US")
	q.Set("gl", "US")
	q.Set("ceid", "US:en")
	return c.cfg.GoogleNewsBase + "/rss/search?" + q.Encode()
}

// AINews covers the AI industry news module: NewsAPI search primary,
// Google News RSS alternates.
type AINews struct {
	c *Client
}

func NewAINews(c *Client) *AINews { return &AINews{c: c} }

func (a *AINews) Module() string             { return "ainews" }
func (a *AINews) Kind() aggregate.SourceKind { return aggregate.KindNews }

func (a *AINews) Primary(ctx context.Context) ([]aggregate.ContentItem, error) {
	return a.c.searchNewsAPI(ctx, `"artificial intelligence" OR OpenAI OR Anthropic OR "large language model"`)
}

func (a *AINews) Alternates() []aggregate.FetchFunc {
	return []aggregate.FetchFunc{
		func(ctx context.Context) ([]aggregate.ContentItem, error) {
			feed, err := a.c.getFeed(ctx, a.c.googleNewsSearch("artificial intelligence"))
			if err != nil {
				return nil, err
			}
			return feedItems(feed, "gnews-ai"), nil
		},
		func(ctx context.Context) ([]aggregate.ContentItem, error) {
			feed, err := a.c.getFeed(ctx, a.c.googleNewsSearch("OpenAI OR Anthropic OR DeepMind"))
			if err != nil {
				return nil, err
			}
			return feedItems(feed, "gnews-ai-labs"), nil
		},
	}
}

func (a *AINews) BuiltinSeed() []aggregate.ContentItem { return seedItems("ainews") }
