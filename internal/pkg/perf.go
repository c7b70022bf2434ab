package pkg

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// 计数类别
const (
	StatReceived  = "received"
	StatProcessed = "processed"
	StatErrors    = "errors"
)

// PerformanceMetrics 按附加模块类型统计消息数
type PerformanceMetrics struct {
	StartTime time.Time

	ProcessingTime int64 // 纳秒
	ProcessedItems int64

	msgStats *concurrentMsgStats
}

// concurrentMsgStats 使用分离的 sync.Map 保护不同类别的计数
type concurrentMsgStats struct {
	received  sync.Map // string -> *int64
	processed sync.Map // string -> *int64
	errors    sync.Map // string -> *int64
}

// MsgCounts 某个类型的计数快照
type MsgCounts struct {
	Received  int64 `json:"received"`
	Processed int64 `json:"processed"`
	Errors    int64 `json:"errors"`
}

var (
	perfMetrics *PerformanceMetrics
	once        sync.Once
)

// NewPerformanceMetrics 创建独立的指标实例，测试中使用
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{
		StartTime: time.Now(),
		msgStats:  &concurrentMsgStats{},
	}
}

// GetPerformanceMetrics 返回进程级指标实例
func GetPerformanceMetrics() *PerformanceMetrics {
	once.Do(func() {
		perfMetrics = NewPerformanceMetrics()
	})
	return perfMetrics
}

// 从sync.Map中获取计数器，如果不存在则创建
func getOrCreateCounter(m *sync.Map, key string) *int64 {
	if val, ok := m.Load(key); ok {
		return val.(*int64)
	}
	counter := new(int64)
	if actual, loaded := m.LoadOrStore(key, counter); loaded {
		return actual.(*int64)
	}
	return counter
}

// IncMsgReceived 增加特定类型的接收消息计数并返回当前值
func (pm *PerformanceMetrics) IncMsgReceived(msgType string) int64 {
	return atomic.AddInt64(getOrCreateCounter(&pm.msgStats.received, msgType), 1)
}

// IncMsgProcessed 增加特定类型的处理消息计数并返回当前值
func (pm *PerformanceMetrics) IncMsgProcessed(msgType string) int64 {
	return atomic.AddInt64(getOrCreateCounter(&pm.msgStats.processed, msgType), 1)
}

// IncMsgErrors 增加特定类型的错误消息计数并返回当前值
func (pm *PerformanceMetrics) IncMsgErrors(msgType string) int64 {
	return atomic.AddInt64(getOrCreateCounter(&pm.msgStats.errors, msgType), 1)
}

// GetMsgCount 获取特定类型的消息计数
func (pm *PerformanceMetrics) GetMsgCount(msgType string, statsType string) int64 {
	var m *sync.Map
	switch statsType {
	case StatReceived:
		m = &pm.msgStats.received
	case StatProcessed:
		m = &pm.msgStats.processed
	case StatErrors:
		m = &pm.msgStats.errors
	default:
		return 0
	}
	if val, ok := m.Load(msgType); ok {
		return atomic.LoadInt64(val.(*int64))
	}
	return 0
}

// MsgTypes 所有出现过的类型（排序）
func (pm *PerformanceMetrics) MsgTypes() []string {
	seen := make(map[string]struct{})
	collect := func(key, _ interface{}) bool {
		seen[key.(string)] = struct{}{}
		return true
	}
	pm.msgStats.received.Range(collect)
	pm.msgStats.errors.Range(collect)
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot 所有类型的计数快照
func (pm *PerformanceMetrics) Snapshot() map[string]MsgCounts {
	out := make(map[string]MsgCounts)
	for _, t := range pm.MsgTypes() {
		out[t] = MsgCounts{
			Received:  pm.GetMsgCount(t, StatReceived),
			Processed: pm.GetMsgCount(t, StatProcessed),
			Errors:    pm.GetMsgCount(t, StatErrors),
		}
	}
	return out
}

// LogMetrics 将性能指标写入日志
func (pm *PerformanceMetrics) LogMetrics(logger *zap.Logger) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var avg time.Duration
	if n := atomic.LoadInt64(&pm.ProcessedItems); n > 0 {
		avg = time.Duration(atomic.LoadInt64(&pm.ProcessingTime) / n)
	}
	logger.Info("性能指标统计",
		zap.Duration("uptime", time.Since(pm.StartTime)),
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Uint64("memory_mb", mem.Alloc/1024/1024),
		zap.Duration("avg_processing", avg),
		zap.Any("messages", pm.Snapshot()),
	)
}

// Timer 简单的计时器结构体
type Timer struct {
	start   time.Time
	metrics *PerformanceMetrics
	name    string
}

// NewTimer 创建一个新的计时器
func (pm *PerformanceMetrics) NewTimer(name string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: pm,
		name:    name,
	}
}

// Stop 停止计时器并记录时间
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	atomic.AddInt64(&t.metrics.ProcessingTime, int64(duration))
	atomic.AddInt64(&t.metrics.ProcessedItems, 1)
	return duration
}

// StopAndLog 停止计时器并记录到日志
func (t *Timer) StopAndLog(logger *zap.Logger) time.Duration {
	duration := t.Stop()
	logger.Debug("操作计时",
		zap.String("operation", t.name),
		zap.Duration("duration", duration),
	)
	return duration
}
