package collector

// NewGitHubTrendingAdapter 直接抓取 GitHub Trending 页面（单页）
func NewGitHubTrendingAdapter(opts AdapterOptions) *ListSite {
	return &ListSite{
		SiteName:      "github_trending",
		BaseURL:       "https://github.com",
		ListPath:      "/trending",
		ItemSelector:  "article.Box-row",
		TitleSelector: "h2 a",
		Options:       opts,
	}
}
