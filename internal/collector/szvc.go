package collector

// NewSZVCAdapter 深创投官网公告列表，支持多页
func NewSZVCAdapter(opts AdapterOptions) *ListSite {
	return &ListSite{
		SiteName:      "szvc",
		BaseURL:       "https://www.szvc.com.cn",
		ListPath:      "/notice",
		PageParam:     "page",
		ItemSelector:  ".app-page-list-article .item",
		TitleSelector: ".title a",
		DateSelector:  ".date, .time",
		PagerSelector: ".app-page-pagination, .pagination",
		Options:       opts,
	}
}
