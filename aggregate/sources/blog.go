package sources

import (
	"context"

	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate"
)

// Blog covers the community blog module: WordPress RSS primary, a
// homepage scrape as alternate.
type Blog struct {
	c *Client
}

func NewBlog(c *Client) *Blog { return &Blog{c: c} }

func (b *Blog) Module() string             { return "blog" }
func (b *Blog) Kind() aggregate.SourceKind { return aggregate.KindBlog }

func (b *Blog) Primary(ctx context.Context) ([]aggregate.ContentItem, error) {
	feed, err := b.c.getFeed(ctx, b.c.cfg.BlogBase+"/feed")
	if err != nil {
		return nil, err
	}
	return feedItems(feed, "blog-rss"), nil
}

func (b *Blog) Alternates() []aggregate.FetchFunc {
	return []aggregate.FetchFunc{
		func(ctx context.Context) ([]aggregate.ContentItem, error) {
			page := b.c.cfg.BlogBase + "/"
			doc, err := b.c.getDoc(ctx, page, "")
			if err != nil {
				return nil, err
			}
			// WordPress themes vary; entry titles are the stable hook. The
			// label records which extraction path produced each item.
			items := linkItems(doc, "h2.entry-title a, h1.entry-title a", page, "blog-scrape")
			if len(items) == 0 {
				items = linkItems(doc, "article a", page, "blog-scrape-generic")
			}
			return items, nil
		},
	}
}

func (b *Blog) BuiltinSeed() []aggregate.ContentItem { return seedItems("blog") }
