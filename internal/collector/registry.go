package collector

import (
	"context"
	"sort"
)

// Adapter 抽象一个无法通过共享 API 获取、需要直接抓取站点页面的数据源。
// 实现必须 fail-soft：内部任何错误都只记录日志，并返回空的 success payload。
type Adapter interface {
	Name() string
	FetchRaw(ctx context.Context, pageLimit int) *RawPayload
}

// Registry 数据源 ID 到本地适配器的静态映射，构造后只读
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry 复制一份映射，之后不再支持注册
func NewRegistry(adapters map[string]Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for id, a := range adapters {
		if a != nil {
			m[id] = a
		}
	}
	return &Registry{adapters: m}
}

// DefaultRegistry 内置适配器。新增站点只需在这里加一行并实现对应 Adapter。
func DefaultRegistry(opts AdapterOptions) *Registry {
	return NewRegistry(map[string]Adapter{
		"szvc":                  NewSZVCAdapter(opts),
		"szse":                  NewSZSEAdapter(opts),
		"github-trending-local": NewGitHubTrendingAdapter(opts),
		"baidu-hot-local":       NewBaiduHotAdapter(opts),
		"hackernews-local":      NewHackerNewsAdapter(opts),
	})
}

// Resolve 返回数据源对应的适配器
func (r *Registry) Resolve(id string) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	a, ok := r.adapters[id]
	return a, ok
}

// IDs 返回已注册的数据源 ID（字典序）
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
