package pkg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
version: "1.0.0"
log:
  log_path: ./logs/gateway.log
  max_size: 512
  max_backups: 10
  max_age: 30
  compress: true
  level: debug
connector:
  type: mqtt
  config:
    broker: "tcp://127.0.0.1:1883"
    clientID: "addongate"
    maxReconnectInterval: 10s
    topics:
      robot/addon/status: 0
      robot/addon/init: 1
estimator:
  seed: 7
  revisions:
    "92":
      touch:
        scheme: linear
        predictors: [Clear]
        params: [-3, 0.1]
derived:
  - type: ColourSensor
    name: RedRatio
    expr: ratio(V.Red, V.Clear)
api:
  enable: true
  port: ":8080"
`

const sinkConfig = `
sink:
  - type: prometheus
    enable: true
    config:
      namespace: addon
  - type: kafka
    enable: false
    config:
      brokers: ["127.0.0.1:9092"]
      topic: addon-status
`

// TestInitCommon 测试多个文件合并后的解析结果
func TestInitCommon(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "common.yaml"), []byte(baseConfig), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "sink"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "sink", "sink.yml"), []byte(sinkConfig), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "README.txt"), []byte("not yaml"), 0644))

	config, err := InitCommon(tempDir)
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", config.Version)
	assert.Equal(t, "./logs/gateway.log", config.Log.LogPath)
	assert.Equal(t, 512, config.Log.MaxSize)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "mqtt", config.Connector.Type)
	assert.Equal(t, int64(7), config.Estimator.Seed)
	assert.False(t, config.Estimator.Disable)
	assert.Contains(t, config.Estimator.Revisions, "92")
	require.Len(t, config.Derived, 1)
	assert.Equal(t, DerivedConfig{Type: "ColourSensor", Name: "RedRatio", Expr: "ratio(V.Red, V.Clear)"}, config.Derived[0])
	require.Len(t, config.Sink, 2)
	assert.Equal(t, "prometheus", config.Sink[0].Type)
	assert.True(t, config.Sink[0].Enable)
	assert.Equal(t, "addon", config.Sink[0].Config["namespace"])
	assert.False(t, config.Sink[1].Enable)
	assert.True(t, config.API.Enable)
	assert.Equal(t, ":8080", config.API.Port)

	mqttConfig, err := UnmarshalMqttConfig(config.Connector.Config)
	require.NoError(t, err)
	assert.Equal(t, "tcp://127.0.0.1:1883", mqttConfig.Broker)
	assert.Equal(t, "addongate", mqttConfig.ClientID)
	assert.Equal(t, 10*time.Second, mqttConfig.MaxReconnectInterval)
	assert.Equal(t, byte(1), mqttConfig.Topics["robot/addon/init"])
}

// TestWithConfigAndConfigFromContext 测试 WithConfig 和 ConfigFromContext 函数
func TestWithConfigAndConfigFromContext(t *testing.T) {
	testConfig := &Config{
		Version:   "1.0.0",
		Connector: ConnectorConfig{Type: "mqtt"},
	}
	ctx := WithConfig(context.Background(), testConfig)

	extracted := ConfigFromContext(ctx)
	assert.Same(t, testConfig, extracted)
	assert.Equal(t, "mqtt", extracted.Connector.Type)
}

// TestConfigFromContextWithoutConfig 测试在上下文中没有配置时的情况
func TestConfigFromContextWithoutConfig(t *testing.T) {
	extracted := ConfigFromContext(context.Background())
	require.NotNil(t, extracted)
	assert.Equal(t, "", extracted.Version)
	assert.Empty(t, extracted.Sink)
}

// TestInitCommonConfigFileNotFound 测试 InitCommon 函数当配置目录不存在时的错误处理
func TestInitCommonConfigFileNotFound(t *testing.T) {
	_, err := InitCommon("/invalid/path")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "访问路径 /invalid/path"), err.Error())
}

// TestUnmarshalConfig 测试类型不匹配时的错误
func TestUnmarshalConfig(t *testing.T) {
	tempDir := t.TempDir()
	invalidConfigContent := `
log:
  log_path: "/var/log/test.log"
  max_age: "not_a_number"
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "invalid_config.yaml"), []byte(invalidConfigContent), 0644))

	_, err := InitCommon(tempDir)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "反序列化配置失败"), err.Error())
}

// TestInitCommonInvalidConfigFormat 测试 InitCommon 函数当配置文件格式错误时的处理
func TestInitCommonInvalidConfigFormat(t *testing.T) {
	tempDir := t.TempDir()
	invalidConfigContent := `
connector 
  type: "mqtt"
  config:
    broker: "tcp://localhost:1883"
` // 缺少冒号
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "invalid_config.yaml"), []byte(invalidConfigContent), 0644))

	_, err := InitCommon(tempDir)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "读取配置文件失败"), err.Error())
}
