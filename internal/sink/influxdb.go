package sink

import (
	"context"
	"fmt"

	"addongate/internal/pkg"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

func init() {
	Register("influxdb", NewInfluxDbSink)
}

// InfluxDbInfo InfluxDB的专属配置
type InfluxDbInfo struct {
	URL       string `mapstructure:"url"`
	Org       string `mapstructure:"org"`
	Token     string `mapstructure:"token"`
	Bucket    string `mapstructure:"bucket"`
	BatchSize uint   `mapstructure:"batch_size"`
}

// pointWriter 是 api.WriteAPI 中用到的部分
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxDbSink 以附加模块类型名为 measurement 写入 InfluxDB
type InfluxDbSink struct {
	client   influxdb2.Client
	writeAPI pointWriter
	info     InfluxDbInfo
	ctx      context.Context
	logger   *zap.Logger
}

func NewInfluxDbSink(ctx context.Context, cfg pkg.SinkConfig) (Template, error) {
	var info InfluxDbInfo
	if err := mapstructure.WeakDecode(cfg.Config, &info); err != nil {
		return nil, fmt.Errorf("[NewInfluxDbSink] Error decoding map to struct: %v", err)
	}
	if info.URL == "" {
		return nil, fmt.Errorf("influxdb config validation failed: 'url' is required")
	}
	// BatchSize 为 0 时客户端会出现 /0 的panic
	if info.BatchSize == 0 {
		info.BatchSize = 100
	}
	logger := pkg.LoggerFromContext(ctx).With(zap.String("sink_type", "influxdb"))
	logger.Debug("InfluxDB配置", zap.String("url", info.URL), zap.String("bucket", info.Bucket))

	client := influxdb2.NewClientWithOptions(info.URL, info.Token, influxdb2.DefaultOptions().SetBatchSize(info.BatchSize))
	writeAPI := client.WriteAPI(info.Org, info.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			pkg.GetPerformanceMetrics().IncMsgErrors("influxdb_sink")
			logger.Error("write error", zap.Error(err))
		}
	}()
	return &InfluxDbSink{
		client:   client,
		writeAPI: writeAPI,
		info:     info,
		ctx:      ctx,
		logger:   logger,
	}, nil
}

func (b *InfluxDbSink) GetType() string {
	return "influxdb"
}

func (b *InfluxDbSink) Start(points chan pkg.Point) {
	b.logger.Debug("===InfluxDbSink started===")
	defer b.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case point, ok := <-points:
			if !ok {
				return
			}
			b.writeAPI.WritePoint(ToInfluxPoint(point))
			pkg.GetPerformanceMetrics().IncMsgProcessed("influxdb_sink")
		}
	}
}

// ToInfluxPoint measurement 为类型名，tag 为设备名和状态标签
func ToInfluxPoint(point pkg.Point) *write.Point {
	tags := make(map[string]string, len(point.Tag)+1)
	for k, v := range point.Tag {
		tags[k] = v
	}
	tags["device"] = point.Device
	fields := make(map[string]interface{}, len(point.Field))
	for k, v := range point.Field {
		if v != nil {
			fields[k] = v
		}
	}
	return influxdb2.NewPoint(point.DeviceType, tags, fields, point.Ts)
}

// Stop 确保所有数据被写入后关闭客户端
func (b *InfluxDbSink) Stop() {
	b.writeAPI.Flush()
	if b.client != nil {
		b.client.Close()
	}
	b.logger.Debug("===InfluxDbSink stopped===")
}
