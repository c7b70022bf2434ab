package helpers

import (
	"context"
	"sync"

	"addongate/internal/pkg"
	"addongate/internal/sink"

	"go.uber.org/zap"
)

// MemorySink 是一个用于测试的内存型Sink，实现了sink.Template接口
type MemorySink struct {
	received []pkg.Point // 存储接收到的数据
	mu       sync.Mutex  // 保护received
	ctx      context.Context
	logger   *zap.Logger
}

// 最近一次由工厂创建的实例
var (
	lastMu   sync.Mutex
	lastSink *MemorySink
)

// RegisterMemorySink 注册 MemorySink 到 sink 工厂
func RegisterMemorySink() {
	sink.Register("memory_sink", NewMemorySink)
}

// NewMemorySink 创建一个新的MemorySink实例
func NewMemorySink(ctx context.Context, _ pkg.SinkConfig) (sink.Template, error) {
	m := &MemorySink{
		ctx:    ctx,
		logger: pkg.LoggerFromContext(ctx).With(zap.String("sink", "memory")),
	}
	lastMu.Lock()
	lastSink = m
	lastMu.Unlock()
	return m, nil
}

// LastMemorySink 返回最近一次创建的 MemorySink
func LastMemorySink() *MemorySink {
	lastMu.Lock()
	defer lastMu.Unlock()
	return lastSink
}

// GetType 返回sink的类型
func (m *MemorySink) GetType() string {
	return "memory_sink"
}

// Start 阻塞接收点数据，直到 ctx 结束或通道关闭
func (m *MemorySink) Start(points chan pkg.Point) {
	m.logger.Info("MemorySink已启动")
	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("MemorySink正在停止")
			return
		case point, ok := <-points:
			if !ok {
				m.logger.Info("点通道已关闭")
				return
			}
			m.mu.Lock()
			m.received = append(m.received, point)
			m.mu.Unlock()
			m.logger.Debug("MemorySink接收到点数据", zap.String("device", point.Device), zap.Int("fields", len(point.Field)))
		}
	}
}

// GetReceived 返回接收到的所有点数据
func (m *MemorySink) GetReceived() []pkg.Point {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 返回副本以避免数据竞争
	result := make([]pkg.Point, len(m.received))
	copy(result, m.received)
	return result
}

// Reset 清空接收到的数据
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = nil
}
