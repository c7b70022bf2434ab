package internal

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"addongate/internal/addon"
	"addongate/internal/connector"
	"addongate/internal/pkg"
	"addongate/internal/sink"

	"go.uber.org/zap"
)

// 连接器到 pipeline 的缓冲
const inChanSize = 256

// 性能指标日志间隔
var metricsInterval = time.Minute

// Pipeline 连接器 -> 附加模块实例 -> 输出端。
// 报告在单个 goroutine 中逐条处理，一条报告解码、估计完成后才处理下一条，
// 因此颜色传感器的标定写入与解码天然串行。
type Pipeline struct {
	*Engine
	ctx       context.Context
	logger    *zap.Logger
	connector connector.Template
	sinks     *sink.Collection
	metrics   *pkg.PerformanceMetrics
	now       func() time.Time

	mu        sync.RWMutex // 保护 instances，API 会并发读取
	instances map[string]*addon.AddOn
}

// NewPipeline 按配置创建 Engine、连接器和输出端
func NewPipeline(ctx context.Context) (*Pipeline, error) {
	logger := pkg.LoggerFromContext(ctx)

	// 1. 静态依赖
	engine, err := NewEngine(ctx)
	if err != nil {
		return nil, err
	}

	// 2. 连接器
	c, err := connector.New(pkg.WithLoggerAndModule(ctx, logger, "Connector"))
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}

	// 3. 输出端
	s, err := sink.New(pkg.WithLoggerAndModule(ctx, logger, "Sink"))
	if err != nil {
		return nil, fmt.Errorf("failed to create sink: %w", err)
	}
	return newPipeline(ctx, engine, c, s), nil
}

func newPipeline(ctx context.Context, engine *Engine, c connector.Template, s *sink.Collection) *Pipeline {
	return &Pipeline{
		Engine:    engine,
		ctx:       ctx,
		logger:    pkg.LoggerFromContext(ctx).With(zap.String("module", "Pipeline")),
		connector: c,
		sinks:     s,
		metrics:   pkg.GetPerformanceMetrics(),
		now:       time.Now,
		instances: make(map[string]*addon.AddOn),
	}
}

// AddSink 在 Start 之前追加输出端，例如 API 的 websocket 推送
func (p *Pipeline) AddSink(s sink.Template) error {
	return p.sinks.Add(s)
}

// Start 启动输出端、连接器和处理循环，出错时上报到全局错误通道
func (p *Pipeline) Start() {
	in := make(chan []byte, inChanSize)

	// 1. 输出端先于连接器启动
	p.sinks.Start()
	p.logger.Info("sinks started", zap.Strings("types", p.sinks.Types()))

	// 2. 连接器
	if err := p.connector.Start(in); err != nil {
		p.logger.Error("failed to start connector", zap.Error(err))
		pkg.ReportError(p.ctx, fmt.Errorf("failed to start connector: %w", err))
		return
	}

	// 3. 处理循环
	go p.run(in)
	go p.logMetrics()
}

func (p *Pipeline) run(in <-chan []byte) {
	defer func() {
		p.sinks.Close()
		if err := p.connector.Close(); err != nil {
			p.logger.Debug("connector close", zap.Error(err))
		}
		p.logger.Info("pipeline stopped")
	}()
	for {
		select {
		case <-p.ctx.Done():
			return
		case payload := <-in:
			// 错误已在 Handle 中计数并记录
			_, _ = p.Handle(payload)
		}
	}
}

func (p *Pipeline) logMetrics() {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.metrics.LogMetrics(p.logger)
		}
	}
}

// Handle 解析并处理一条原始报告。
// 初始化回报返回 nil, nil；状态报告返回组装好的 Status。
func (p *Pipeline) Handle(payload []byte) (*addon.Status, error) {
	report, err := ParseReport(payload)
	if err != nil {
		p.metrics.IncMsgErrors("report")
		p.logger.Warn("invalid report dropped", zap.Error(err), zap.ByteString("payload", payload))
		return nil, err
	}
	return p.Process(report)
}

// Process 处理一条已解析的报告
func (p *Pipeline) Process(report RawReport) (*addon.Status, error) {
	if report.MsgType == MsgTypeInit {
		p.processInit(report)
		return nil, nil
	}

	// 1. 找到或创建实例
	a, err := p.instance(report)
	if err != nil {
		p.metrics.IncMsgErrors("unknown")
		p.logger.Warn("no add-on type for report", zap.String("name", report.Name),
			zap.String("family", report.Family), zap.String("whoAmI", report.WhoAmI), zap.Error(err))
		return nil, err
	}
	typeName := a.TypeName()
	p.metrics.IncMsgReceived(typeName)

	// 2. 解码与估计，失败时整条记录丢弃
	raw, err := report.Raw()
	if err != nil {
		p.metrics.IncMsgErrors(typeName)
		p.logger.Warn("invalid payload, record dropped", zap.String("name", report.Name), zap.Error(err))
		return nil, err
	}
	timer := p.metrics.NewTimer("decode")
	status, err := a.ProcessPublishedData(report.ID, report.Status, raw)
	timer.Stop()
	if err != nil {
		p.metrics.IncMsgErrors(typeName)
		p.logger.Warn("decode failed, record dropped", zap.String("name", report.Name), zap.Error(err))
		return nil, err
	}

	// 3. 扇出
	p.sinks.Publish(ToPoint(status, typeName, p.now()))
	p.metrics.IncMsgProcessed(typeName)
	return status, nil
}

// instance 按名称取实例，类型或修订版本变化时重新创建
func (p *Pipeline) instance(report RawReport) (*addon.AddOn, error) {
	p.mu.RLock()
	a, ok := p.instances[report.Name]
	p.mu.RUnlock()
	if ok && a.Family() == report.Family && a.WhoAmI() == report.WhoAmI && a.Revision() == report.Revision {
		return a, nil
	}

	a, err := p.Registry.Create(report.Family, report.WhoAmI, report.Name, report.Revision)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.instances[report.Name] = a
	p.mu.Unlock()
	p.logger.Info("add-on instance created", zap.String("name", a.Name()), zap.String("type", a.TypeName()),
		zap.String("family", a.Family()), zap.String("revision", a.Revision()))

	if cmd := a.InitCmd(); cmd != "" {
		p.sendInit(a.Name(), cmd)
	}
	return a, nil
}

// sendInit 通过支持下发命令的连接器发送初始化命令，不支持时只记录
func (p *Pipeline) sendInit(name, cmd string) {
	commander, ok := p.connector.(connector.Commander)
	if !ok {
		p.logger.Debug("connector cannot send commands, init skipped", zap.String("name", name))
		return
	}
	if err := commander.Send(cmd); err != nil {
		p.metrics.IncMsgErrors("init_cmd")
		p.logger.Warn("failed to send init command", zap.String("name", name), zap.Error(err))
	}
}

// processInit 写标定时持有写锁，与 Instances 的读取互斥
func (p *Pipeline) processInit(report RawReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.instances[report.ElemName]
	if !ok {
		p.logger.Warn("init report for unknown element", zap.String("elemName", report.ElemName))
		return
	}
	a.ProcessInit(report.InitMsg())
}

// Instances 当前实例的快照（按名称排序）
func (p *Pipeline) Instances() []addon.Info {
	p.mu.RLock()
	out := make([]addon.Info, 0, len(p.instances))
	for _, a := range p.instances {
		out = append(out, a.Info())
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToPoint 把 Status 转换为输出端使用的点
func ToPoint(status *addon.Status, typeName string, ts time.Time) pkg.Point {
	fields := make(map[string]interface{}, len(status.Vals))
	for k, v := range status.Vals {
		fields[k] = v
	}
	return pkg.Point{
		Device:     status.Name,
		DeviceType: typeName,
		Tag: map[string]string{
			"id":       strconv.Itoa(status.ID),
			"whoAmI":   status.WhoAmI,
			"revision": status.Revision,
			"status":   fmt.Sprintf("%02x", status.Status),
		},
		Field: fields,
		Ts:    ts,
	}
}
