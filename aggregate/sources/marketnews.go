package sources

import (
	"context"

	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate"
)

// cnbcTopNewsFeed is CNBC's public Top News RSS endpoint.
const cnbcTopNewsFeed = "https://search.cnbc.com/rs/search/combinedcms/view.xml?partnerId=wrss01&id=100003114"

// MarketNews covers the stock market news module: NewsAPI search
// primary, Google News and CNBC RSS alternates.
type MarketNews struct {
	c        *Client
	cnbcFeed string
}

func NewMarketNews(c *Client) *MarketNews {
	return &MarketNews{c: c, cnbcFeed: cnbcTopNewsFeed}
}

func (m *MarketNews) Module() string             { return "marketnews" }
func (m *MarketNews) Kind() aggregate.SourceKind { return aggregate.KindNews }

func (m *MarketNews) Primary(ctx context.Context) ([]aggregate.ContentItem, error) {
	return m.c.searchNewsAPI(ctx, `"stock market" OR "S&P 500" OR Nasdaq OR "Federal Reserve"`)
}

func (m *MarketNews) Alternates() []aggregate.FetchFunc {
	return []aggregate.FetchFunc{
		func(ctx context.Context) ([]aggregate.ContentItem, error) {
			feed, err := m.c.getFeed(ctx, m.c.googleNewsSearch("stock market"))
			if err != nil {
				return nil, err
			}
			return feedItems(feed, "gnews-market"), nil
		},
		func(ctx context.Context) ([]aggregate.ContentItem, error) {
			feed, err := m.c.getFeed(ctx, m.cnbcFeed)
			if err != nil {
				return nil, err
			}
			return feedItems(feed, "cnbc"), nil
		},
	}
}

func (m *MarketNews) BuiltinSeed() []aggregate.ContentItem { return seedItems("marketnews") }
