package connector

import (
	"context"
	"fmt"
	"time"

	"addongate/internal/pkg"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MQTTClient 定义一个接口，包含需要的 MQTT 客户端方法
type MQTTClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// MqttConnector 从 MQTT 订阅附加模块的状态与初始化回报
type MqttConnector struct {
	ctx    context.Context
	config *pkg.MqttConfig
	Client MQTTClient
	out    chan<- []byte
}

func init() {
	Register("mqtt", NewMqttConnector)
}

func (m *MqttConnector) GetType() string {
	return "mqtt"
}

func (m *MqttConnector) Start(out chan<- []byte) error {
	logger := pkg.LoggerFromContext(m.ctx)
	metrics := pkg.GetPerformanceMetrics()
	m.out = out

	// 1. 连接
	if token := m.Client.Connect(); token.Wait() && token.Error() != nil {
		metrics.IncMsgErrors("mqtt_connect")
		return fmt.Errorf("MQTT连接失败: %w", token.Error())
	}

	// 2. 订阅多个话题
	token := m.Client.SubscribeMultiple(m.config.Topics, m.messagePubHandler)
	token.Wait()
	if err := token.Error(); err != nil {
		metrics.IncMsgErrors("mqtt_subscribe")
		return fmt.Errorf("MQTT订阅失败: %w", err)
	}
	logger.Info("MQTT订阅成功，正在监听消息", zap.Int("topics", len(m.config.Topics)))
	return nil
}

// Send 向命令主题下发一条命令
func (m *MqttConnector) Send(cmd string) error {
	if m.config.CommandTopic == "" {
		return fmt.Errorf("未配置 commandTopic")
	}
	token := m.Client.Publish(m.config.CommandTopic, 1, false, cmd)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("MQTT命令发送超时: %s", cmd)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT命令发送失败: %w", err)
	}
	pkg.LoggerFromContext(m.ctx).Debug("command sent", zap.String("topic", m.config.CommandTopic), zap.String("cmd", cmd))
	return nil
}

func (m *MqttConnector) Close() error {
	if m.Client != nil && m.Client.IsConnected() {
		m.Client.Disconnect(250)
		pkg.LoggerFromContext(m.ctx).Info("MQTT连接已断开")
		return nil
	}
	return fmt.Errorf("MQTT客户端未连接")
}

func NewMqttConnector(ctx context.Context) (Template, error) {
	// 1. 解析配置
	config := pkg.ConfigFromContext(ctx)
	mqttConfig, err := pkg.UnmarshalMqttConfig(config.Connector.Config)
	if err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %w", err)
	}
	if mqttConfig.Broker == "" {
		return nil, fmt.Errorf("配置文件解析失败: 缺少 broker")
	}
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = "addongate-" + uuid.NewString()
	}

	mqttConnector := &MqttConnector{
		ctx:    ctx,
		config: mqttConfig,
	}

	// 2. 创建 MQTT 客户端，paho 负责自动重连
	opts := mqtt.NewClientOptions()
	opts.AddBroker(mqttConfig.Broker)
	opts.SetClientID(mqttConfig.ClientID)
	opts.SetUsername(mqttConfig.Username)
	opts.SetPassword(mqttConfig.Password)
	opts.SetAutoReconnect(true)
	if mqttConfig.MaxReconnectInterval > 0 {
		opts.SetMaxReconnectInterval(mqttConfig.MaxReconnectInterval)
	}
	opts.OnConnect = mqttConnector.connectHandler
	opts.OnConnectionLost = mqttConnector.connectLostHandler

	mqttConnector.Client = mqtt.NewClient(opts)
	return mqttConnector, nil
}

func (m *MqttConnector) messagePubHandler(_ mqtt.Client, msg mqtt.Message) {
	logger := pkg.LoggerFromContext(m.ctx)
	metrics := pkg.GetPerformanceMetrics()
	metrics.IncMsgReceived("mqtt")
	logger.Debug("Received message", zap.String("topic", msg.Topic()), zap.Int("size", len(msg.Payload())))

	// paho 会复用 payload 缓冲区
	payload := append([]byte(nil), msg.Payload()...)
	select {
	case m.out <- payload:
		metrics.IncMsgProcessed("mqtt")
	case <-m.ctx.Done():
	}
}

// 连接成功回调
func (m *MqttConnector) connectHandler(_ mqtt.Client) {
	pkg.LoggerFromContext(m.ctx).Info("成功连接至MQTT broker", zap.String("broker", m.config.Broker))
}

// 连接丢失回调，paho 会自动重连
func (m *MqttConnector) connectLostHandler(_ mqtt.Client, err error) {
	pkg.GetPerformanceMetrics().IncMsgErrors("mqtt_connection_lost")
	pkg.LoggerFromContext(m.ctx).Error("Connect lost", zap.Error(err))
}
