package health

import "sync/atomic"

// Readiness 启动阶段的就绪标记：存储初始化完成、TCP 开始监听
type Readiness struct {
	storageReady atomic.Bool
	ingestReady  atomic.Bool
}

func NewReadiness() *Readiness { return &Readiness{} }

func (r *Readiness) SetStorageReady(v bool) { r.storageReady.Store(v) }
func (r *Readiness) SetIngestReady(v bool)  { r.ingestReady.Store(v) }

// Ready 各阶段均完成
func (r *Readiness) Ready() bool {
	return r.storageReady.Load() && r.ingestReady.Load()
}
