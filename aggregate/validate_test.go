package aggregate

import "testing"

// WHAT: forum rules accept thread detail pages and reject board/nav pages.
// WHY: Discuz list pages are full of links that look like content but are
// pagination and board indexes; letting one through fills a module with
// navigation entries.
func TestForumDetailURL(t *testing.T) {
	rules := RulesFor(KindForum)

	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"static thread url", "https://www.1point3acres.com/bbs/thread-1079704-1-1.html", true},
		{"dynamic viewthread", "https://www.1point3acres.com/bbs/forum.php?mod=viewthread&tid=1079704", true},
		{"instant thread path", "https://instant.1point3acres.com/thread/1079704", true},
		{"board index", "https://www.1point3acres.com/bbs/forum-27-1.html", false},
		{"forumdisplay", "https://www.1point3acres.com/bbs/forum.php?mod=forumdisplay&fid=27", false},
		{"member profile", "https://www.1point3acres.com/bbs/member.php?mod=logging", false},
		{"user space", "https://www.1point3acres.com/bbs/space-uid-12345.html", false},
		{"search page", "https://www.1point3acres.com/bbs/search.php?mod=forum", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rules.IsDetailURL(tc.url); got != tc.want {
				t.Errorf("IsDetailURL(%q) = %v, want %v", tc.url, got, tc.want)
			}
		})
	}
}

// WHAT: blog rules require a dated permalink, post ID, or post path.
// WHY: blog index, category, and tag pages share the host with real posts
// and only the path shape tells them apart.
func TestBlogDetailURL(t *testing.T) {
	rules := RulesFor(KindBlog)

	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"dated permalink", "https://blog.1point3acres.com/2026/07/new-grad-hiring-trends", true},
		{"post id", "https://blog.1point3acres.com/?p=48213", true},
		{"post path", "https://example.com/post/some-writeup", true},
		{"category page", "https://blog.1point3acres.com/category/careers/", false},
		{"tag page", "https://blog.1point3acres.com/tag/visa/", false},
		{"pagination", "https://blog.1point3acres.com/page/3/", false},
		{"bare host", "https://blog.1point3acres.com/", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rules.IsDetailURL(tc.url); got != tc.want {
				t.Errorf("IsDetailURL(%q) = %v, want %v", tc.url, got, tc.want)
			}
		})
	}
}

// WHAT: news rules accept article permalinks from arbitrary outlets.
// WHY: search-API results span many domains, so the rules lean on shapes
// nearly all outlets share: dated paths, /article(s)/, long slugs.
func TestNewsDetailURL(t *testing.T) {
	rules := RulesFor(KindNews)

	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"dated path", "https://www.reuters.com/technology/2026/08/28/some-story", true},
		{"articles path", "https://example.com/articles/fed-rate-decision", true},
		{"long slug", "https://www.cnbc.com/markets/nvidia-q2-earnings-beat-expectations.html", true},
		{"section page", "https://www.reuters.com/section/technology/", false},
		{"topics hub", "https://www.cnbc.com/topics/ai/", false},
		{"video page", "https://www.cnbc.com/video/ai-roundup", false},
		{"short path", "https://example.com/about", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rules.IsDetailURL(tc.url); got != tc.want {
				t.Errorf("IsDetailURL(%q) = %v, want %v", tc.url, got, tc.want)
			}
		})
	}
}

// WHAT: junk title detection catches nav text, short strings, mojibake
// leftovers, in both English and Chinese.
// WHY: link-text extraction from scraped list pages surfaces these
// constantly; they must never count toward the module minimum.
func TestIsJunkTitle(t *testing.T) {
	cases := []struct {
		title string
		want  bool
	}{
		{"Nvidia beats earnings expectations again", false},
		{"新能源车企八月销量汇总与讨论", false},
		{"", true},
		{"more", true},
		{"Read More", true},
		{"下一页", true},
		{"更多", true},
		{"short", true},
		{"点击查看详细内容介绍", true},
		{"Broken t�tle from bad decode", true},
		{"   \t  ", true},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			if got := IsJunkTitle(tc.title); got != tc.want {
				t.Errorf("IsJunkTitle(%q) = %v, want %v", tc.title, got, tc.want)
			}
		})
	}
}
