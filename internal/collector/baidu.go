package collector

// NewBaiduHotAdapter 百度实时热搜榜（单页）。
// 页面 class 带哈希后缀，改版后需要同步更新选择器。
func NewBaiduHotAdapter(opts AdapterOptions) *ListSite {
	return &ListSite{
		SiteName:      "baidu_hot",
		BaseURL:       "https://top.baidu.com",
		ListPath:      "/board?tab=realtime",
		ItemSelector:  "div.category-wrap_iQLoo",
		TitleSelector: "div.c-single-text-ellipsis",
		LinkSelector:  "a",
		Options:       opts,
	}
}
