package collector

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy 共享 API 路径的重试策略：线性增长 + 两段随机抖动
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy 最多重试 2 次，基础等待 3~5 秒
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    3 * time.Second,
		MaxWait:    5 * time.Second,
	}
}

// Attempts 总请求次数 = 首次 + 重试
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Backoff 计算第 retry 次重试（从 1 开始）前的等待时间：
// uniform(MinWait, MaxWait) + (retry-1) * uniform(1s, 2s)
func (p RetryPolicy) Backoff(retry int, rng *rand.Rand) time.Duration {
	base := uniformDuration(rng, p.MinWait, p.MaxWait)
	if retry <= 1 {
		return base
	}
	extra := uniformDuration(rng, time.Second, 2*time.Second)
	return base + time.Duration(retry-1)*extra
}

func uniformDuration(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Float64()*float64(hi-lo))
}

// uniformInt 返回 [lo, hi] 闭区间内的整数
func uniformInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
}

// sleepFunc 可被测试替换，避免真实等待
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
