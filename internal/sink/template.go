package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"addongate/internal/pkg"

	"go.uber.org/zap"
)

// Template 定义了所有输出端的通用接口
type Template interface {
	GetType() string      // 输出类型
	Start(chan pkg.Point) // 阻塞运行直到 ctx 结束或通道关闭
}

// FactoryFunc 代表一个输出端的工厂函数
type FactoryFunc func(ctx context.Context, cfg pkg.SinkConfig) (Template, error)

// Factories 全局工厂映射，这里面可能包含了没有启用的输出端
var Factories = make(map[string]FactoryFunc)

// Register 注册一个输出端
func Register(sinkType string, factory FactoryFunc) {
	Factories[sinkType] = factory
}

// 每个输出端的缓冲
const chanSize = 256

// Collection 已启用的输出端集合，Publish 把同一个点扇出到设备名匹配的输出端
type Collection struct {
	logger *zap.Logger

	mu      sync.RWMutex
	sinks   map[string]Template
	chans   map[string]chan pkg.Point
	filters map[string][]*regexp.Regexp // 输出类型 -> 设备名过滤条件，nil 表示全部接收
	closed  bool

	road sync.Map // 设备名 -> 其对应的输出类型
}

func NewCollection(logger *zap.Logger) *Collection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection{
		logger:  logger,
		sinks:   make(map[string]Template),
		chans:   make(map[string]chan pkg.Point),
		filters: make(map[string][]*regexp.Regexp),
	}
}

// New 按配置创建所有启用的输出端
var New = func(ctx context.Context) (*Collection, error) {
	logger := pkg.LoggerFromContext(ctx)
	factoryTypes := make([]string, 0, len(Factories))
	for key := range Factories {
		factoryTypes = append(factoryTypes, key)
	}
	sort.Strings(factoryTypes)
	logger.Debug("Sink Factory:", zap.Strings("Factories", factoryTypes))

	c := NewCollection(logger)
	for _, sinkConfig := range pkg.ConfigFromContext(ctx).Sink {
		if !sinkConfig.Enable {
			continue
		}
		factory, exists := Factories[sinkConfig.Type]
		if !exists {
			return nil, fmt.Errorf("未找到输出类型: %s", sinkConfig.Type)
		}
		logger.Info(fmt.Sprintf("===正在启动Sink: %s===", sinkConfig.Type))
		s, err := factory(ctx, sinkConfig)
		if err != nil {
			return nil, fmt.Errorf("初始化输出 %s 失败: %w", sinkConfig.Type, err)
		}
		if err := c.AddWithFilter(s, sinkConfig.Filter); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add 加入一个接收所有设备的输出端
func (c *Collection) Add(s Template) error {
	return c.AddWithFilter(s, nil)
}

// AddWithFilter 加入一个输出端，同类型只能有一个。filter 为设备名正则，任一匹配即接收
func (c *Collection) AddWithFilter(s Template, filter []string) error {
	res := make([]*regexp.Regexp, 0, len(filter))
	for _, f := range filter {
		re, err := regexp.Compile(f)
		if err != nil {
			return fmt.Errorf("输出 %s 过滤条件 %q 不合法: %w", s.GetType(), f, err)
		}
		res = append(res, re)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sinks[s.GetType()]; ok {
		return fmt.Errorf("输出 %s 重复", s.GetType())
	}
	c.sinks[s.GetType()] = s
	c.chans[s.GetType()] = make(chan pkg.Point, chanSize)
	if len(res) > 0 {
		c.filters[s.GetType()] = res
	}
	// 输出端变化后重新计算路由
	c.road.Range(func(k, _ any) bool {
		c.road.Delete(k)
		return true
	})
	return nil
}

// route 设备名对应的输出类型，首次计算后缓存。调用方持有读锁
func (c *Collection) route(device string) []string {
	if v, ok := c.road.Load(device); ok {
		return v.([]string)
	}
	types := make([]string, 0, len(c.sinks))
	for key := range c.sinks {
		res, ok := c.filters[key]
		if !ok {
			types = append(types, key)
			continue
		}
		for _, re := range res {
			if re.MatchString(device) {
				types = append(types, key)
				break
			}
		}
	}
	sort.Strings(types)
	c.road.Store(device, types)
	return types
}

// Types 已启用的输出类型（排序）
func (c *Collection) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.sinks))
	for k := range c.sinks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Start 为每个输出端启动一个 goroutine
func (c *Collection) Start() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for key, s := range c.sinks {
		go s.Start(c.chans[key])
	}
}

// Publish 非阻塞扇出，某个输出端积压时丢弃该点并计数
func (c *Collection) Publish(point pkg.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	for _, key := range c.route(point.Device) {
		select {
		case c.chans[key] <- point:
		default:
			pkg.GetPerformanceMetrics().IncMsgErrors("sink_" + key)
			c.logger.Warn("sink channel full, point dropped", zap.String("sink_type", key), zap.String("device", point.Device))
		}
	}
}

// Close 关闭所有输出通道，各输出端的 Start 随之返回
func (c *Collection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.chans {
		close(ch)
	}
}

// Payload 输出端之间统一的 JSON 结构
type Payload struct {
	Device string                 `json:"device"`
	Type   string                 `json:"type"`
	Tags   map[string]string      `json:"tags"`
	Fields map[string]interface{} `json:"fields"`
	Ts     int64                  `json:"ts"` // unix nano
}

// MarshalPoint 序列化一个点
func MarshalPoint(point pkg.Point) ([]byte, error) {
	return json.Marshal(Payload{
		Device: point.Device,
		Type:   point.DeviceType,
		Tags:   point.Tag,
		Fields: point.Field,
		Ts:     point.Ts.UnixNano(),
	})
}
