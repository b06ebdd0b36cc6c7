package gateway

import (
	"sync"
)

// Registry 进程内连接注册表。
// 写操作（连接/断开）持排他锁；推送先在读锁下快照目标连接，
// 再在锁外做网络写，推送永远不会阻塞注册表变更。
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Client // conn_id -> client
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Client)}
}

// Register 连接完成鉴权后登记
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

// Unregister 连接关闭时移除；重复移除是无害的
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
}

// Collect 收集某用户当前全部在线连接的快照
func (r *Registry) Collect(userID uint64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Client
	for _, c := range r.conns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// CountByUser 某用户的在线连接数
func (r *Registry) CountByUser(userID uint64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.conns {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

// Count 全部在线连接数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
