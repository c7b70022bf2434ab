package sink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"addongate/internal/pkg"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func init() {
	Register("prometheus", NewPrometheusSink)
}

// PrometheusInfo Prometheus 的专属配置。
// Port 为 0 时不单独监听，由 API 的 /metrics 暴露默认 registry。
type PrometheusInfo struct {
	Namespace string `mapstructure:"namespace"`
	Port      int    `mapstructure:"port"`
	Endpoint  string `mapstructure:"endpoint"`
}

// PrometheusSink 把数值与布尔字段导出为 gauge
type PrometheusSink struct {
	info   PrometheusInfo
	ctx    context.Context
	logger *zap.Logger
	values *prometheus.GaugeVec
}

func NewPrometheusSink(ctx context.Context, cfg pkg.SinkConfig) (Template, error) {
	var info PrometheusInfo
	if err := mapstructure.WeakDecode(cfg.Config, &info); err != nil {
		return nil, fmt.Errorf("[NewPrometheusSink] Error decoding map to struct: %v", err)
	}
	if info.Namespace == "" {
		info.Namespace = "addongate"
	}
	if info.Endpoint == "" {
		info.Endpoint = "/metrics"
	}
	p, err := newPrometheusSink(ctx, info, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	if info.Port > 0 {
		mux := http.NewServeMux()
		mux.Handle(info.Endpoint, promhttp.Handler())
		go func() {
			p.logger.Info("Starting Prometheus HTTP server", zap.Int("port", info.Port), zap.String("endpoint", info.Endpoint))
			if err := http.ListenAndServe(fmt.Sprintf(":%d", info.Port), mux); err != nil {
				pkg.ReportError(ctx, fmt.Errorf("prometheus HTTP server: %w", err))
			}
		}()
	}
	return p, nil
}

func newPrometheusSink(ctx context.Context, info PrometheusInfo, reg prometheus.Registerer) (*PrometheusSink, error) {
	values := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: info.Namespace,
		Name:      "addon_value",
		Help:      "Latest decoded add-on value, booleans as 0/1",
	}, []string{"device", "type", "field"})
	c, err := register(reg, values)
	if err != nil {
		return nil, fmt.Errorf("注册 Prometheus 指标失败: %w", err)
	}
	values = c.(*prometheus.GaugeVec)
	if _, err := register(reg, NewMessageCollector(info.Namespace, pkg.GetPerformanceMetrics())); err != nil {
		return nil, fmt.Errorf("注册 Prometheus 指标失败: %w", err)
	}
	return &PrometheusSink{
		info:   info,
		ctx:    ctx,
		logger: pkg.LoggerFromContext(ctx).With(zap.String("sink_type", "prometheus")),
		values: values,
	}, nil
}

// 重复注册时返回已有的 collector
func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}

func (p *PrometheusSink) GetType() string {
	return "prometheus"
}

func (p *PrometheusSink) Start(points chan pkg.Point) {
	p.logger.Info("===PrometheusSink started===")
	for {
		select {
		case <-p.ctx.Done():
			return
		case point, ok := <-points:
			if !ok {
				return
			}
			p.Publish(point)
		}
	}
}

// Publish 更新 gauge，字段标签去掉实例名前缀
func (p *PrometheusSink) Publish(point pkg.Point) {
	for key, raw := range point.Field {
		field := strings.TrimPrefix(key, point.Device)
		var v float64
		switch value := raw.(type) {
		case float64:
			v = value
		case bool:
			if value {
				v = 1
			}
		default:
			p.logger.Warn("Unsupported data type for Prometheus metrics", zap.String("field", key), zap.Any("value", value))
			continue
		}
		p.values.With(prometheus.Labels{"device": point.Device, "type": point.DeviceType, "field": field}).Set(v)
	}
}

// MessageCollector 把 pkg.PerformanceMetrics 的按类型计数导出为 counter
type MessageCollector struct {
	metrics *pkg.PerformanceMetrics
	desc    *prometheus.Desc
}

func NewMessageCollector(namespace string, metrics *pkg.PerformanceMetrics) *MessageCollector {
	return &MessageCollector{
		metrics: metrics,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages_total"),
			"Messages counted per type and stage",
			[]string{"type", "stat"}, nil,
		),
	}
}

func (c *MessageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *MessageCollector) Collect(ch chan<- prometheus.Metric) {
	for t, counts := range c.metrics.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(counts.Received), t, pkg.StatReceived)
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(counts.Processed), t, pkg.StatProcessed)
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(counts.Errors), t, pkg.StatErrors)
	}
}
