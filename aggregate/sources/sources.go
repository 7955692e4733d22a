// Package sources implements the per-module SourceStrategy set for the
// dashboard: JSON search APIs and Google News RSS for the news modules,
// RSS plus scraped HTML for the community forum and blog modules.
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/mrz1836/go-sanitize"

	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate"
	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate/internal/charset"
	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate/internal/fetch"
)

// Config holds the upstream endpoints and credentials. Base URLs are
// overridable so tests can point strategies at local servers.
type Config struct {
	// NewsAPIKey enables the JSON search primaries for the news modules.
	// Empty is allowed: those primaries then fail fast and the chain
	// moves to the RSS alternates.
	NewsAPIKey string

	NewsAPIBase    string
	GoogleNewsBase string
	ForumBase      string
	BlogBase       string

	UserAgent string
	Timeout   time.Duration
}

func (c *Config) defaults() {
	if c.NewsAPIBase == "" {
		c.NewsAPIBase = "https://newsapi.org/v2"
	}
	if c.GoogleNewsBase == "" {
		c.GoogleNewsBase = "https://news.google.com"
	}
	if c.ForumBase == "" {
		c.ForumBase = "https://www.1point3acres.com"
	}
	if c.BlogBase == "" {
		c.BlogBase = "https://blog.1point3acres.com"
	}
}

// Client is the shared upstream access layer for all strategies: one
// fetcher, one feed parser configuration, one set of endpoints.
type Client struct {
	cfg     Config
	fetcher *fetch.Fetcher
}

func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg: cfg,
		fetcher: fetch.New(fetch.Config{
			Timeout:   cfg.Timeout,
			UserAgent: cfg.UserAgent,
		}),
	}
}

// All returns every module strategy in dashboard display order.
func (c *Client) All() []aggregate.SourceStrategy {
	return []aggregate.SourceStrategy{
		NewAINews(c),
		NewMarketNews(c),
		NewBlog(c),
		NewGossip(c),
		NewMarketHot(c),
	}
}

// getJSON fetches url and decodes the response body into v.
func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	res, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return fmt.Errorf("sources: decode %s: %w", url, err)
	}
	return nil
}

// getFeed fetches and parses an RSS/Atom feed.
func (c *Client) getFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	res, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("sources: parse feed %s: %w", url, err)
	}
	return feed, nil
}

// getDoc fetches an HTML page, normalizes its charset, and parses it.
// fallbackCharset names the encoding to assume when the page declares
// nothing ("gbk" for the forum, empty for UTF-8 sites).
func (c *Client) getDoc(ctx context.Context, url, fallbackCharset string) (*goquery.Document, error) {
	res, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	decoded := charset.Decode(res.Body, res.ContentType, fallbackCharset)
	slog.Debug("page decoded",
		"url", url, "encoding", decoded.Encoding, "corrected", decoded.Corrected)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(decoded.Text))
	if err != nil {
		return nil, fmt.Errorf("sources: parse html %s: %w", url, err)
	}
	return doc, nil
}

// cleanTitle strips markup remnants and collapses a scraped or feed
// title onto one line.
func cleanTitle(s string) string {
	return strings.TrimSpace(sanitize.SingleLine(sanitize.XSS(s)))
}

// feedItems converts feed entries to content items under one source label.
func feedItems(feed *gofeed.Feed, label string) []aggregate.ContentItem {
	items := make([]aggregate.ContentItem, 0, len(feed.Items))
	for _, fi := range feed.Items {
		title := cleanTitle(fi.Title)
		if title == "" || fi.Link == "" {
			continue
		}
		item := aggregate.ContentItem{
			Title:       title,
			URL:         strings.TrimSpace(fi.Link),
			SourceLabel: label,
		}
		if fi.PublishedParsed != nil {
			item.PublishedAt = fi.PublishedParsed.UTC()
		}
		items = append(items, item)
	}
	return items
}

// linkItems extracts (title, href) pairs from doc with the given
// selector and resolves them against pageURL.
func linkItems(doc *goquery.Document, selector, pageURL, label string) []aggregate.ContentItem {
	var items []aggregate.ContentItem
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		title := cleanTitle(sel.Text())
		abs := aggregate.ResolveURL(pageURL, href)
		if title == "" || abs == "" {
			return
		}
		items = append(items, aggregate.ContentItem{
			Title:       title,
			URL:         abs,
			SourceLabel: label,
		})
	})
	return items
}
