package sources

import (
	"context"
	"fmt"

	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate"
)

// Discuz board IDs on 1point3acres.
const (
	gossipForumID    = 27  // 职场达人 / workplace gossip board
	marketHotForumID = 294 // 二手市场 / marketplace board
)

// forumStrategy is the shared shape of the two 1point3acres modules:
// board RSS primary, GB18030 board-page scrape alternate.
type forumStrategy struct {
	c      *Client
	module string
	fid    int
	label  string
}

func (f *forumStrategy) Module() string             { return f.module }
func (f *forumStrategy) Kind() aggregate.SourceKind { return aggregate.KindForum }

func (f *forumStrategy) Primary(ctx context.Context) ([]aggregate.ContentItem, error) {
	url := fmt.Sprintf("%s/bbs/forum.php?mod=rss&fid=%d&auth=0", f.c.cfg.ForumBase, f.fid)
	feed, err := f.c.getFeed(ctx, url)
	if err != nil {
		return nil, err
	}
	return feedItems(feed, f.label+"-rss"), nil
}

func (f *forumStrategy) Alternates() []aggregate.FetchFunc {
	return []aggregate.FetchFunc{
		func(ctx context.Context) ([]aggregate.ContentItem, error) {
			page := fmt.Sprintf("%s/bbs/forum-%d-1.html", f.c.cfg.ForumBase, f.fid)
			// Older Discuz pages ship GBK bytes with no charset header.
			doc, err := f.c.getDoc(ctx, page, "gbk")
			if err != nil {
				return nil, err
			}
			// a.s.xst is the Discuz thread-subject link class. The label
			// records which extraction path produced each item.
			items := linkItems(doc, "a.s.xst", page, f.label+"-scrape")
			if len(items) == 0 {
				items = linkItems(doc, `a[href*="thread-"]`, page, f.label+"-scrape-generic")
			}
			return items, nil
		},
	}
}

func (f *forumStrategy) BuiltinSeed() []aggregate.ContentItem { return seedItems(f.module) }

// Gossip is the workplace-gossip forum module.
type Gossip struct {
	forumStrategy
}

func NewGossip(c *Client) *Gossip {
	return &Gossip{forumStrategy{c: c, module: "gossip", fid: gossipForumID, label: "1p3a-gossip"}}
}
