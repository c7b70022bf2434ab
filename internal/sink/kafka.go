package sink

import (
	"context"
	"fmt"
	"time"

	"addongate/internal/pkg"

	"github.com/mitchellh/mapstructure"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func init() {
	Register("kafka", NewKafkaSink)
}

// KafkaSinkConfig 包含 Kafka Sink 特定的配置
type KafkaSinkConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	Async           bool     `mapstructure:"async"`
	WriteTimeoutSec int      `mapstructure:"writeTimeoutSec"`
	RequiredAcks    int      `mapstructure:"requiredAcks"` // -1 全部 ISR, 0 不确认, 其他为 1
	BatchSize       int      `mapstructure:"batchSize"`
}

// messageWriter 是 kafka.Writer 中用到的部分
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink 把状态记录以设备名为 key 写入 Kafka
type KafkaSink struct {
	writer messageWriter
	config KafkaSinkConfig
	logger *zap.Logger
	ctx    context.Context
}

func NewKafkaSink(ctx context.Context, sc pkg.SinkConfig) (Template, error) {
	var cfg KafkaSinkConfig
	if err := mapstructure.WeakDecode(sc.Config, &cfg); err != nil {
		return nil, fmt.Errorf("error decoding Kafka config: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka config validation failed: 'brokers' is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka config validation failed: 'topic' is required")
	}
	if cfg.WriteTimeoutSec == 0 {
		cfg.WriteTimeoutSec = 10
	}
	acks := kafka.RequireOne
	switch cfg.RequiredAcks {
	case -1:
		acks = kafka.RequireAll
	case 0:
		acks = kafka.RequireNone
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // 同一设备进入同一分区
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		RequiredAcks: acks,
		Async:        cfg.Async,
		BatchSize:    cfg.BatchSize,
	}
	ks := newKafkaSink(ctx, writer, cfg)
	ks.logger.Info("Kafka sink initialized", zap.Strings("brokers", cfg.Brokers), zap.Bool("async", cfg.Async))
	return ks, nil
}

func newKafkaSink(ctx context.Context, w messageWriter, cfg KafkaSinkConfig) *KafkaSink {
	return &KafkaSink{
		writer: w,
		config: cfg,
		logger: pkg.LoggerFromContext(ctx).With(zap.String("sink_type", "kafka"), zap.String("topic", cfg.Topic)),
		ctx:    ctx,
	}
}

func (ks *KafkaSink) GetType() string {
	return "kafka"
}

func (ks *KafkaSink) Start(points chan pkg.Point) {
	metrics := pkg.GetPerformanceMetrics()
	ks.logger.Info("===KafkaSink Started===")
	defer func() {
		if err := ks.writer.Close(); err != nil {
			ks.logger.Error("Failed to close Kafka writer cleanly", zap.Error(err))
		}
		ks.logger.Info("===KafkaSink Finished===")
	}()

	for {
		select {
		case <-ks.ctx.Done():
			return
		case point, ok := <-points:
			if !ok {
				return
			}
			timer := metrics.NewTimer("kafka_sink_write")
			err := ks.Publish(point)
			timer.StopAndLog(ks.logger)
			if err != nil {
				if ks.ctx.Err() != nil {
					// 关闭过程中的取消不计为错误
					continue
				}
				metrics.IncMsgErrors("kafka_sink")
				ks.logger.Error("Failed to write message to Kafka", zap.Error(err), zap.String("device", point.Device))
				continue
			}
			metrics.IncMsgProcessed("kafka_sink")
		}
	}
}

// Publish 写入一条消息
func (ks *KafkaSink) Publish(point pkg.Point) error {
	data, err := MarshalPoint(point)
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}
	return ks.writer.WriteMessages(ks.ctx, kafka.Message{
		Key:   []byte(point.Device),
		Value: data,
		Time:  point.Ts,
	})
}
