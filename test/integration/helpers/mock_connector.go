package helpers

import (
	"context"
	"errors"
	"sync"

	"addongate/internal/connector"
	"addongate/internal/pkg"

	"go.uber.org/zap"
)

// MockConnector 实现了connector.Template和connector.Commander接口，但不连接真实设备，
// 而是允许测试代码直接"注入"报告，并记录下发的命令
type MockConnector struct {
	ctx    context.Context
	logger *zap.Logger

	mu       sync.Mutex
	out      chan<- []byte
	commands []string
	closed   bool
}

var (
	lastConnMu sync.Mutex
	lastConn   *MockConnector
)

// RegisterMockConnector 注册MockConnector到connector工厂
func RegisterMockConnector() {
	connector.Register("mock", NewMockConnector)
}

// NewMockConnector 创建新的MockConnector实例
func NewMockConnector(ctx context.Context) (connector.Template, error) {
	m := &MockConnector{
		ctx:    ctx,
		logger: pkg.LoggerFromContext(ctx).With(zap.String("component", "mock_connector")),
	}
	lastConnMu.Lock()
	lastConn = m
	lastConnMu.Unlock()
	return m, nil
}

// LastMockConnector 返回最近一次创建的 MockConnector
func LastMockConnector() *MockConnector {
	lastConnMu.Lock()
	defer lastConnMu.Unlock()
	return lastConn
}

// Start 实现Template接口
func (m *MockConnector) Start(out chan<- []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = out
	m.logger.Info("MockConnector已启动")
	return nil
}

func (m *MockConnector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockConnector) GetType() string {
	return "mock"
}

// Send 记录下发的命令
func (m *MockConnector) Send(cmd string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return nil
}

// Commands 已下发的命令
func (m *MockConnector) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Closed 是否已被 pipeline 关闭
func (m *MockConnector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Inject 允许测试代码注入一条原始报告
func (m *MockConnector) Inject(report []byte) error {
	m.mu.Lock()
	out := m.out
	m.mu.Unlock()
	if out == nil {
		return errors.New("MockConnector未启动")
	}
	select {
	case out <- report:
		return nil
	case <-m.ctx.Done():
		return m.ctx.Err()
	}
}
