package sources

// MarketHot is the marketplace hot-threads forum module.
type MarketHot struct {
	forumStrategy
}

func NewMarketHot(c *Client) *MarketHot {
	return &MarketHot{forumStrategy{c: c, module: "markethot", fid: marketHotForumID, label: "1p3a-market"}}
}
