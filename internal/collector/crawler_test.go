package collector

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponse struct {
	payload *RawPayload
	err     error
}

// fakeFetcher 按 ID 返回预设结果
type fakeFetcher struct {
	responses map[string]fakeResponse
	calls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, req SourceRequest) (*RawPayload, error) {
	f.calls = append(f.calls, req.ID)
	r, ok := f.responses[req.ID]
	if !ok {
		return nil, errors.New("unknown source")
	}
	return r.payload, r.err
}

func jsonPayload(body string) *RawPayload {
	return &RawPayload{Status: StatusSuccess, Body: []byte(body), ItemCount: 1}
}

func newTestCrawler(fetcher SourceFetcher, mode KeyMode) (*Crawler, *sleepRecorder) {
	cfg := DefaultCrawlerConfig()
	cfg.Mode = mode
	c := NewCrawler(fetcher, cfg, nil)
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	c.rng = rand.New(rand.NewPCG(3, 4))
	return c, rec
}

func assertOneOutcomePerSource(t *testing.T, reqs []SourceRequest, res *CrawlResult) {
	t.Helper()
	failed := make(map[string]bool, len(res.Failed))
	for _, id := range res.Failed {
		assert.False(t, failed[id], "source %s failed twice", id)
		failed[id] = true
	}
	for _, r := range reqs {
		_, ok := res.Results[r.ID]
		assert.True(t, ok != failed[r.ID], "source %s must be in exactly one of results/failed", r.ID)
	}
	assert.Equal(t, len(reqs), res.Outcomes())
}

const duplicateTitlePayload = `{"status":"success","items":[
	{"title":"首条","url":"https://e.com/1"},
	{"title":"重复标题","url":"https://e.com/2","mobileUrl":"https://m.e.com/2"},
	{"title":"第三","url":"https://e.com/3"},
	{"title":"第四","url":"https://e.com/4"},
	{"title":"重复标题","url":"https://e.com/5"}
]}`

func TestCrawlUniqueModeKeepsDuplicateTitles(t *testing.T) {
	f := &fakeFetcher{responses: map[string]fakeResponse{"a": {payload: jsonPayload(duplicateTitlePayload)}}}
	c, _ := newTestCrawler(f, KeyModeUnique)

	res := c.Crawl(context.Background(), []SourceRequest{NewSourceRequest("a", "")})
	require.Contains(t, res.Results, "a")
	items := res.Results["a"]

	assert.Equal(t, KeyModeUnique, res.Mode)
	assert.Len(t, items, 5)
	require.Contains(t, items, "002_重复标题")
	require.Contains(t, items, "005_重复标题")
	assert.Equal(t, []int{2}, items["002_重复标题"].Ranks)
	assert.Equal(t, []int{5}, items["005_重复标题"].Ranks)
	assert.Equal(t, "https://m.e.com/2", items["002_重复标题"].MobileURL)
	assert.Equal(t, "https://e.com/5", items["005_重复标题"].URL)
}

func TestCrawlMergeModeAccumulatesRanks(t *testing.T) {
	f := &fakeFetcher{responses: map[string]fakeResponse{"a": {payload: jsonPayload(duplicateTitlePayload)}}}
	c, _ := newTestCrawler(f, KeyModeMerge)

	res := c.Crawl(context.Background(), []SourceRequest{NewSourceRequest("a", "")})
	items := res.Results["a"]

	assert.Equal(t, KeyModeMerge, c.Mode())
	assert.Len(t, items, 4)
	require.Contains(t, items, "重复标题")
	assert.Equal(t, []int{2, 5}, items["重复标题"].Ranks)
	assert.Equal(t, "https://e.com/2", items["重复标题"].URL, "first occurrence keeps its links")
	assert.Equal(t, []int{1}, items["首条"].Ranks)
}

func TestCrawlDropsInvalidTitles(t *testing.T) {
	body := `{"status":"success","items":[
		{"title":""},
		{"title":"   "},
		{"title":null},
		{"url":"https://e.com/no-title"},
		{"title":1.5},
		{"title":true},
		{"title":42,"release_time":"2024-05-01"},
		{"title":"  保留  ","date":"05-02","release_time":"ignored"}
	]}`
	f := &fakeFetcher{responses: map[string]fakeResponse{"a": {payload: jsonPayload(body)}}}
	c, _ := newTestCrawler(f, KeyModeUnique)

	res := c.Crawl(context.Background(), []SourceRequest{NewSourceRequest("a", "")})
	items := res.Results["a"]

	require.Len(t, items, 2)
	assert.Equal(t, NormalizedItem{Title: "42", PublishedAt: "2024-05-01", Ranks: []int{7}}, items["007_42"])
	assert.Equal(t, NormalizedItem{Title: "保留", PublishedAt: "05-02", Ranks: []int{8}}, items["008_保留"])
}

func TestCrawlParseFailureMarksSourceFailed(t *testing.T) {
	f := &fakeFetcher{responses: map[string]fakeResponse{
		"bad":    {payload: jsonPayload(`{not json`)},
		"scalar": {payload: jsonPayload(`{"items":["just a string"]}`)},
		"good":   {payload: jsonPayload(`{"status":"success","items":[]}`)},
	}}
	c, _ := newTestCrawler(f, KeyModeUnique)
	reqs := []SourceRequest{
		NewSourceRequest("bad", "坏数据"),
		NewSourceRequest("scalar", ""),
		NewSourceRequest("good", ""),
	}

	res := c.Crawl(context.Background(), reqs)

	assert.Equal(t, []string{"bad", "scalar"}, res.Failed)
	assert.Equal(t, "坏数据", res.Names["bad"])
	assert.NotContains(t, res.Results, "bad")
	require.Contains(t, res.Results, "good")
	assert.Empty(t, res.Results["good"], "empty item list is still a result")
	assertOneOutcomePerSource(t, reqs, res)
}

func TestCrawlFetchFailureRecordsNameOnly(t *testing.T) {
	f := &fakeFetcher{responses: map[string]fakeResponse{
		"down": {err: ErrRetriesExhausted},
	}}
	c, _ := newTestCrawler(f, KeyModeUnique)
	reqs := []SourceRequest{NewSourceRequest("down", "挂了"), NewSourceRequest("unknown", "")}

	res := c.Crawl(context.Background(), reqs)

	assert.Equal(t, []string{"down", "unknown"}, res.Failed)
	assert.Empty(t, res.Results)
	assert.Equal(t, map[string]string{"down": "挂了", "unknown": "unknown"}, res.Names)
	assertOneOutcomePerSource(t, reqs, res)
}

func TestCrawlPacesBetweenSourcesOnly(t *testing.T) {
	ok := fakeResponse{payload: jsonPayload(`{"items":[]}`)}
	f := &fakeFetcher{responses: map[string]fakeResponse{"a": ok, "b": ok, "c": ok}}
	c, rec := newTestCrawler(f, KeyModeUnique)

	c.Crawl(context.Background(), []SourceRequest{
		NewSourceRequest("a", ""), NewSourceRequest("b", ""), NewSourceRequest("c", ""),
	})

	waits := rec.recorded()
	require.Len(t, waits, 2)
	for _, w := range waits {
		assert.GreaterOrEqual(t, w, 90*time.Millisecond)
		assert.LessOrEqual(t, w, 120*time.Millisecond)
	}
}

func TestCrawlPacingHasFloor(t *testing.T) {
	c, _ := newTestCrawler(&fakeFetcher{}, KeyModeUnique)
	c.interval = 10 * time.Millisecond
	for i := 0; i < 50; i++ {
		assert.GreaterOrEqual(t, c.pacing(), 50*time.Millisecond)
	}
}

func TestCrawlZeroIntervalPacesAtFloor(t *testing.T) {
	c := NewCrawler(&fakeFetcher{}, CrawlerConfig{Mode: KeyModeUnique}, nil)
	c.rng = rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 50; i++ {
		assert.Equal(t, 50*time.Millisecond, c.pacing())
	}

	neg := NewCrawler(&fakeFetcher{}, CrawlerConfig{RequestInterval: -time.Second}, nil)
	assert.Equal(t, time.Duration(0), neg.interval)
	assert.Equal(t, KeyModeUnique, neg.Mode())
}

func TestCrawlDuplicateIDsCrawledOnce(t *testing.T) {
	f := &fakeFetcher{responses: map[string]fakeResponse{"a": {payload: jsonPayload(`{"items":[{"title":"x"}]}`)}}}
	c, rec := newTestCrawler(f, KeyModeUnique)

	res := c.Crawl(context.Background(), []SourceRequest{
		NewSourceRequest("a", "first"), NewSourceRequest("a", "second"),
	})

	assert.Equal(t, []string{"a"}, f.calls)
	assert.Equal(t, "first", res.Names["a"])
	assert.Empty(t, res.Failed)
	assert.Empty(t, rec.recorded())
	assert.Equal(t, 1, res.Outcomes())
}

func TestCrawlCancelledContextFailsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{}
	c, _ := newTestCrawler(f, KeyModeUnique)
	reqs := []SourceRequest{NewSourceRequest("a", ""), NewSourceRequest("b", "")}

	res := c.Crawl(ctx, reqs)

	assert.Empty(t, f.calls)
	assert.Equal(t, []string{"a", "b"}, res.Failed)
	assertOneOutcomePerSource(t, reqs, res)
}

// a 成功返回 2 条，b 每次都超时
func TestCrawlEndToEndWithSharedAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "a":
			_, _ = w.Write([]byte(`{"status":"success","items":[
				{"title":"one","url":"https://a.com/1"},
				{"title":"two","url":"https://a.com/2","date":"2024-01-01"}
			]}`))
		default:
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}
	}))
	defer srv.Close()

	fetcher, _ := newTestFetcher(t, srv.URL, nil)
	fetcher.client.Timeout = 20 * time.Millisecond
	c, _ := newTestCrawler(fetcher, KeyModeUnique)
	reqs := []SourceRequest{NewSourceRequest("a", ""), NewSourceRequest("b", "")}

	res := c.Crawl(context.Background(), reqs)

	require.Contains(t, res.Results, "a")
	assert.Len(t, res.Results["a"], 2)
	assert.Equal(t, "2024-01-01", res.Results["a"]["002_two"].PublishedAt)
	assert.Equal(t, []string{"b"}, res.Failed)
	assert.Equal(t, map[string]string{"a": "a", "b": "b"}, res.Names)
	assert.Equal(t, []string{"a"}, res.Succeeded())
	assertOneOutcomePerSource(t, reqs, res)
}
