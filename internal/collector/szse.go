package collector

import "context"

// SZSEAdapter 深交所公告占位适配器：尚未实现页面抓取，始终返回空结果，
// 由 Fetcher 回退到共享 API。
type SZSEAdapter struct {
	Options AdapterOptions
}

func NewSZSEAdapter(opts AdapterOptions) *SZSEAdapter {
	return &SZSEAdapter{Options: opts}
}

func (a *SZSEAdapter) Name() string {
	return "szse"
}

func (a *SZSEAdapter) FetchRaw(_ context.Context, _ int) *RawPayload {
	if a.Options.Logger != nil {
		a.Options.Logger.Debug("szse adapter not implemented yet, return empty result")
	}
	return NewSuccessPayload(nil)
}
