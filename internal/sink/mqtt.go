package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"addongate/internal/pkg"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

func init() {
	Register("mqtt", NewMqttSink)
}

// MQTTClientInterface 定义了我们需要的 MQTT 客户端方法
type MQTTClientInterface interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// 测试中替换
var newMqttClient = func(opts *mqtt.ClientOptions) MQTTClientInterface {
	return mqtt.NewClient(opts)
}

// MqttInfo MQTT 输出的专属配置
type MqttInfo struct {
	Broker         string `mapstructure:"broker"` // tcp://host:port
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	ClientID       string `mapstructure:"clientID"`
	Topic          string `mapstructure:"topic"` // Base topic
	QoS            byte   `mapstructure:"qos"`
	Retained       bool   `mapstructure:"retained"`
	KeepAliveSec   uint   `mapstructure:"keepAliveSec"`
	PingTimeoutSec uint   `mapstructure:"pingTimeoutSec"`
}

// MqttSink 把状态记录发布到 <topic>/<device>
type MqttSink struct {
	client MQTTClientInterface
	info   MqttInfo
	ctx    context.Context
	logger *zap.Logger
}

func NewMqttSink(ctx context.Context, cfg pkg.SinkConfig) (Template, error) {
	log := pkg.LoggerFromContext(ctx)
	var info MqttInfo
	if err := mapstructure.WeakDecode(cfg.Config, &info); err != nil {
		return nil, fmt.Errorf("failed to decode MQTT config: %w", err)
	}
	if info.Broker == "" {
		return nil, fmt.Errorf("mqtt config validation failed: 'broker' is required")
	}
	if info.Topic == "" {
		return nil, fmt.Errorf("mqtt config validation failed: 'topic' is required")
	}
	if info.ClientID == "" {
		info.ClientID = "addongate-sink-" + uuid.NewString()
		log.Info("MQTT ClientID not set, generated default", zap.String("clientID", info.ClientID))
	}
	if info.KeepAliveSec == 0 {
		info.KeepAliveSec = 60
	}
	if info.PingTimeoutSec == 0 {
		info.PingTimeoutSec = 2
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(info.Broker)
	opts.SetClientID(info.ClientID)
	opts.SetUsername(info.Username)
	opts.SetPassword(info.Password)
	opts.SetKeepAlive(time.Duration(info.KeepAliveSec) * time.Second)
	opts.SetPingTimeout(time.Duration(info.PingTimeoutSec) * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Error("MQTT connection lost", zap.Error(err), zap.String("broker", info.Broker))
	}

	client := newMqttClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connection failed for %s: %w", info.Broker, token.Error())
	}

	return &MqttSink{
		client: client,
		info:   info,
		ctx:    ctx,
		logger: log.With(zap.String("sink_type", "mqtt"), zap.String("base_topic", info.Topic)),
	}, nil
}

func (b *MqttSink) GetType() string {
	return "mqtt"
}

func (b *MqttSink) Start(points chan pkg.Point) {
	b.logger.Info("===MqttSink Started===")
	defer func() {
		if b.client.IsConnected() {
			b.client.Disconnect(250)
		}
		b.logger.Info("===MqttSink Finished===")
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case point, ok := <-points:
			if !ok {
				return
			}
			if err := b.Publish(point); err != nil {
				pkg.GetPerformanceMetrics().IncMsgErrors("mqtt_sink")
				b.logger.Error("publish failed", zap.Error(err), zap.String("device", point.Device))
			}
		}
	}
}

// Topic 设备对应的发布主题
func (b *MqttSink) Topic(device string) string {
	return strings.TrimSuffix(b.info.Topic, "/") + "/" + device
}

// Publish 发布一个点，paho 负责离线缓冲，这里不等待 token
func (b *MqttSink) Publish(point pkg.Point) error {
	data, err := MarshalPoint(point)
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}
	b.client.Publish(b.Topic(point.Device), b.info.QoS, b.info.Retained, data)
	pkg.GetPerformanceMetrics().IncMsgProcessed("mqtt_sink")
	return nil
}
