package collector

import "errors"

// 采集链路上的错误分类，调用方用 errors.Is 判断
var (
	// ErrNetwork 连接失败、超时或非 2xx 状态码
	ErrNetwork = errors.New("network error")
	// ErrResponseFormat 响应不是合法 JSON 或 status 不是 success / cache
	ErrResponseFormat = errors.New("response format error")
	// ErrParse 拉取成功但归一化阶段解析 payload 失败
	ErrParse = errors.New("parse error")
	// ErrAdapterInternal 站点适配器内部出错，只在适配器内部记录，不向外传播
	ErrAdapterInternal = errors.New("adapter internal error")
	// ErrRetriesExhausted 共享 API 重试耗尽
	ErrRetriesExhausted = errors.New("retries exhausted")
)
