package collector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

const (
	adapterUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	adapterClientTimeout = 15 * time.Second
	adapterPagePause     = 500 * time.Millisecond
)

// 分页提示里的 "1 / 7"，取分母作为总页数
var pagerPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

// AdapterOptions 所有本地适配器共享的抓取参数
type AdapterOptions struct {
	UserAgent string
	ProxyURL  string
	Timeout   time.Duration
	PagePause time.Duration
	Logger    *zap.Logger
}

// ListSite 抓取"公告列表"类页面的通用适配器。
//
// 选择器是与具体站点之间的私有约定，站点改版后需要同步调整。
type ListSite struct {
	SiteName string
	BaseURL  string
	ListPath string
	// PageParam 为空表示站点不翻页
	PageParam string

	ItemSelector  string
	TitleSelector string
	// LinkSelector 为空时从标题节点取 href
	LinkSelector  string
	DateSelector  string
	PagerSelector string

	Options AdapterOptions

	sleep sleepFunc
}

func (s *ListSite) Name() string {
	return s.SiteName
}

// FetchRaw 抓取最多 pageLimit 页并封装成 success payload；任何失败都返回空结果
func (s *ListSite) FetchRaw(ctx context.Context, pageLimit int) (payload *RawPayload) {
	log := s.logger().With(zap.String("adapter", s.SiteName))
	defer func() {
		if r := recover(); r != nil {
			log.Error("adapter panicked", zap.Error(fmt.Errorf("%w: %v", ErrAdapterInternal, r)))
			payload = NewSuccessPayload(nil)
		}
	}()

	items, err := s.crawl(ctx, pageLimit, log)
	if err != nil {
		log.Warn("adapter failed, return empty result", zap.Error(err))
		return NewSuccessPayload(nil)
	}
	if len(items) == 0 {
		log.Info("adapter got 0 items")
	}
	return NewSuccessPayload(items)
}

func (s *ListSite) crawl(ctx context.Context, pageLimit int, log *zap.Logger) ([]RawItem, error) {
	if pageLimit < 1 {
		pageLimit = 1
	}

	firstURL := s.pageURL(1)
	first, err := s.fetchPage(firstURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch page 1: %w", ErrAdapterInternal, err)
	}

	total := 1
	if s.PageParam != "" {
		total = discoverTotalPages(first, s.PagerSelector)
	}
	pages := min(total, pageLimit)
	log.Debug("pagination discovered", zap.Int("total_pages", total), zap.Int("pages", pages))

	items := s.extract(first, firstURL)
	for page := 2; page <= pages; page++ {
		if err := s.pause(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAdapterInternal, err)
		}
		pageURL := s.pageURL(page)
		doc, err := s.fetchPage(pageURL)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch page %d: %w", ErrAdapterInternal, page, err)
		}
		items = append(items, s.extract(doc, pageURL)...)
	}

	log.Info("adapter crawled", zap.Int("pages", pages), zap.Int("items", len(items)))
	return items, nil
}

func (s *ListSite) pause(ctx context.Context) error {
	d := s.Options.PagePause
	if d == 0 {
		d = adapterPagePause
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, d)
}

func (s *ListSite) pageURL(page int) string {
	u := strings.TrimRight(s.BaseURL, "/") + s.ListPath
	if page <= 1 || s.PageParam == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + url.QueryEscape(s.PageParam) + "=" + strconv.Itoa(page)
}

// fetchPage 用 colly 拉取单页，返回整个文档的 selection
func (s *ListSite) fetchPage(pageURL string) (*goquery.Selection, error) {
	ua := s.Options.UserAgent
	if ua == "" {
		ua = adapterUserAgent
	}
	timeout := s.Options.Timeout
	if timeout <= 0 {
		timeout = adapterClientTimeout
	}

	c := colly.NewCollector(
		colly.UserAgent(ua),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	if s.Options.ProxyURL != "" {
		if err := c.SetProxy(s.Options.ProxyURL); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	var doc *goquery.Selection
	c.OnHTML("html", func(e *colly.HTMLElement) {
		doc = e.DOM
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("response is not an html document")
	}
	return doc, nil
}

// extract 按站点选择器抽取条目；没有标题链接的节点直接跳过
func (s *ListSite) extract(doc *goquery.Selection, pageURL string) []RawItem {
	var items []RawItem
	doc.Find(s.ItemSelector).Each(func(_ int, node *goquery.Selection) {
		titleSel := node.Find(s.TitleSelector).First()
		if titleSel.Length() == 0 {
			return
		}
		title := collapseSpace(titleSel.Text())
		if title == "" {
			return
		}

		linkSel := titleSel
		if s.LinkSelector != "" {
			linkSel = node.Find(s.LinkSelector).First()
		}
		href, ok := linkSel.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		link := resolveLink(pageURL, strings.TrimSpace(href))

		date := ""
		if s.DateSelector != "" {
			date = collapseSpace(node.Find(s.DateSelector).First().Text())
		}

		items = append(items, RawItem{
			Title:     title,
			URL:       link,
			MobileURL: link,
			Date:      date,
		})
	})
	return items
}

func (s *ListSite) logger() *zap.Logger {
	if s.Options.Logger == nil {
		return zap.NewNop()
	}
	return s.Options.Logger
}

// discoverTotalPages 从分页节点文本中解析总页数，找不到时按 1 页处理
func discoverTotalPages(doc *goquery.Selection, selector string) int {
	if selector == "" {
		return 1
	}
	m := pagerPattern.FindStringSubmatch(doc.Find(selector).Text())
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func resolveLink(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
