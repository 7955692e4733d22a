package aggregate

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// RewriteRule maps known alternate/mirror URL shapes onto the canonical
// one before dedup comparison, so the same thread reached through two
// domains collapses to one item.
type RewriteRule struct {
	Pattern *regexp.Regexp
	Replace string
}

// defaultRewrites covers the mirrors the monitored sources are actually
// reached through.
var defaultRewrites = []RewriteRule{
	// Forum mobile/instant mirrors → canonical bbs host.
	{regexp.MustCompile(`^https?://(?:instant|m)\.1point3acres\.com/`), "https://www.1point3acres.com/bbs/"},
	{regexp.MustCompile(`^https?://1point3acres\.com/`), "https://www.1point3acres.com/"},
}

// trackingParams are stripped before URL comparison; they vary per fetch
// without changing the resource.
var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "ref": true, "source": true,
	"spm": true, "from": true,
}

// Dedupe collapses items to unique entries: first by normalized absolute
// URL, then by normalized title + source label to catch the same story
// republished at a different URL. First-seen wins, so callers order input
// by preference (newest or most relevant first) beforehand.
func Dedupe(items []ContentItem, rewrites []RewriteRule) []ContentItem {
	seenURL := make(map[string]bool, len(items))
	seenTitle := make(map[string]bool, len(items))

	out := make([]ContentItem, 0, len(items))
	for _, item := range items {
		urlKey := NormalizeItemURL(item.URL, rewrites)
		if urlKey == "" || seenURL[urlKey] {
			continue
		}
		titleKey := titleKey(item.Title, item.SourceLabel)
		if titleKey != "" && seenTitle[titleKey] {
			continue
		}
		seenURL[urlKey] = true
		if titleKey != "" {
			seenTitle[titleKey] = true
		}
		out = append(out, item)
	}
	return out
}

// NormalizeItemURL produces the dedup comparison key for a URL: rewrite
// rules applied, scheme and host lowercased, fragment dropped, tracking
// params stripped, remaining query sorted, trailing slash removed.
func NormalizeItemURL(raw string, rewrites []RewriteRule) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	for _, rule := range append(append([]RewriteRule{}, rewrites...), defaultRewrites...) {
		if rule.Pattern.MatchString(raw) {
			raw = rule.Pattern.ReplaceAllString(raw, rule.Replace)
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(raw)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	if parsed.RawQuery != "" {
		params := parsed.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			if trackingParams[k] || strings.HasPrefix(k, "utm_") {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf strings.Builder
		for i, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for j, v := range vals {
				if i > 0 || j > 0 {
					buf.WriteByte('&')
				}
				buf.WriteString(url.QueryEscape(k))
				buf.WriteByte('=')
				buf.WriteString(url.QueryEscape(v))
			}
		}
		parsed.RawQuery = buf.String()
	}

	return parsed.String()
}

// ResolveURL makes href absolute against base. Already-absolute hrefs are
// returned as-is; unresolvable ones come back empty.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if h.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}

var titlePunct = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// titleKey builds the secondary dedup key: lowercased title with
// punctuation stripped and whitespace collapsed, scoped by source label.
func titleKey(title, sourceLabel string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = titlePunct.ReplaceAllString(t, " ")
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return ""
	}
	return t + "|" + strings.ToLower(sourceLabel)
}
