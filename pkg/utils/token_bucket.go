package utils

import (
	"sync"
	"time"
)

// TokenBucket 令牌桶限流器（进程内，粗粒度全局限流用）
type TokenBucket struct {
	mu       sync.Mutex
	capacity int64 // 桶容量（突发上限）
	tokens   int64 // 当前令牌数
	rate     int64 // 每秒补充令牌数
	lastFill time.Time
}

// NewTokenBucket 创建令牌桶，capacity 为突发容量，rate 为每秒补充速率
func NewTokenBucket(capacity, rate int64) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if rate <= 0 {
		rate = 1
	}
	return &TokenBucket{
		capacity: capacity,
		tokens:   capacity,
		rate:     rate,
		lastFill: time.Now(),
	}
}

func (tb *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastFill)
	if elapsed <= 0 {
		return
	}
	added := elapsed.Nanoseconds() * tb.rate / int64(time.Second)
	if added > 0 {
		tb.tokens += added
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastFill = now
	}
}

// TakeN 尝试一次性取 n 个令牌，不足立即返回 false
func (tb *TokenBucket) TakeN(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked(time.Now())
	if tb.tokens < n {
		return false
	}
	tb.tokens -= n
	return true
}

// WaitN 在 timeout 内等待 n 个令牌，拿到返回 true
func (tb *TokenBucket) WaitN(n int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if tb.TakeN(n) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
