package aggregate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SourceKind selects the URL validation rule set for a module's sources.
type SourceKind string

const (
	// KindForum covers Discuz-style forums (1point3acres): detail pages
	// are thread views, list pages are forum indexes.
	KindForum SourceKind = "forum"
	// KindBlog covers the community blog: detail pages are dated posts.
	KindBlog SourceKind = "blog"
	// KindNews covers news articles from search APIs and RSS.
	KindNews SourceKind = "news"
)

// RuleSet classifies candidate URLs for one source kind. Forbidden
// patterns identify list/section/index pages and always win; a URL is
// accepted only if it then matches at least one required pattern.
// Ambiguous URLs are rejected: the fallback chain supplies volume, so
// under-inclusion is cheaper than letting a list page through.
type RuleSet struct {
	Forbidden   []string
	ForbiddenRe []*regexp.Regexp
	Required    []string
	RequiredRe  []*regexp.Regexp
}

var forumRules = RuleSet{
	Forbidden: []string{
		"forumdisplay", "member.php", "home.php", "search.php",
		"misc.php", "archiver", "/section/", "/space-uid-",
	},
	ForbiddenRe: []*regexp.Regexp{
		// forum-27-1.html: a board index, not a thread.
		regexp.MustCompile(`forum-\d+-\d+\.html`),
	},
	Required: []string{"viewthread"},
	RequiredRe: []*regexp.Regexp{
		regexp.MustCompile(`thread-\d+-\d+-\d+\.html`),
		regexp.MustCompile(`mod=viewthread`),
		regexp.MustCompile(`/thread/\d+`),
	},
}

var blogRules = RuleSet{
	Forbidden: []string{
		"/category/", "/tag/", "/author/", "/page/", "/feed",
		"/wp-login", "/wp-admin",
	},
	RequiredRe: []*regexp.Regexp{
		// Dated permalink or post ID.
		regexp.MustCompile(`/20\d{2}/\d{2}/[^/]+`),
		regexp.MustCompile(`\?p=\d+`),
		regexp.MustCompile(`/post/`),
		regexp.MustCompile(`/topic/`),
	},
}

var newsRules = RuleSet{
	Forbidden: []string{
		"/section/", "/topics/", "/category/", "/tag/",
		"/video/", "/live/", "/author/", "/search?",
	},
	RequiredRe: []*regexp.Regexp{
		regexp.MustCompile(`/20\d{2}/`),
		regexp.MustCompile(`/(article|story|post)s?/`),
		// Hyphenated slug of at least three words.
		regexp.MustCompile(`/[a-z0-9]+(?:-[a-z0-9]+){2,}`),
	},
}

var kindRules = map[SourceKind]*RuleSet{
	KindForum: &forumRules,
	KindBlog:  &blogRules,
	KindNews:  &newsRules,
}

// RulesFor returns the built-in rule set for kind, or nil if unknown.
func RulesFor(kind SourceKind) *RuleSet {
	return kindRules[kind]
}

// IsDetailURL reports whether rawURL points at a single thread/post/
// article rather than a list or navigation page.
func (r *RuleSet) IsDetailURL(rawURL string) bool {
	if r == nil || rawURL == "" {
		return false
	}
	lower := strings.ToLower(rawURL)

	for _, sub := range r.Forbidden {
		if strings.Contains(lower, sub) {
			return false
		}
	}
	for _, re := range r.ForbiddenRe {
		if re.MatchString(lower) {
			return false
		}
	}
	for _, sub := range r.Required {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	for _, re := range r.RequiredRe {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// minTitleRunes is the shortest believable content title.
const minTitleRunes = 6

// Navigational/functional phrases that show up as link text when a list
// page slipped through extraction.
var junkTitleExact = map[string]bool{
	"read more": true, "more": true, "next": true, "previous": true,
	"home": true, "menu": true, "comments": true, "reply": true,
	"sign in": true, "log in": true, "register": true,
	"更多": true, "下一页": true, "上一页": true, "首页": true,
	"回复": true, "登录": true, "注册": true, "置顶": true,
}

var junkTitleContains = []string{
	"查看全文", "点击查看", "更多内容", "read more", "click here",
}

// IsJunkTitle reports whether title is navigational/functional link text
// or too short or corrupted to be a real item title.
func IsJunkTitle(title string) bool {
	trimmed := strings.TrimSpace(title)
	if utf8.RuneCountInString(trimmed) < minTitleRunes {
		return true
	}
	if strings.ContainsRune(trimmed, '�') {
		return true
	}
	lower := strings.ToLower(trimmed)
	if junkTitleExact[lower] {
		return true
	}
	for _, sub := range junkTitleContains {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
