package pkg

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LogConfig 日志配置
type LogConfig struct {
	LogPath    string `mapstructure:"log_path"`
	MaxSize    int    `mapstructure:"max_size"`    // megabytes
	MaxBackups int    `mapstructure:"max_backups"` // 保留旧文件的最大个数
	MaxAge     int    `mapstructure:"max_age"`     // days
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
}

// ConnectorConfig 连接器配置，Config 由具体连接器自行解析
type ConnectorConfig struct {
	Type   string                 `mapstructure:"type"`
	Config map[string]interface{} `mapstructure:"config"`
}

// MqttConfig 包含 MQTT 配置信息
type MqttConfig struct {
	Broker               string          `mapstructure:"broker"`
	ClientID             string          `mapstructure:"clientID"`
	Username             string          `mapstructure:"username"`
	Password             string          `mapstructure:"password"`
	MaxReconnectInterval time.Duration   `mapstructure:"maxReconnectInterval"`
	Topics               map[string]byte `mapstructure:"topics"`       // 主题和 QoS 的 map
	CommandTopic         string          `mapstructure:"commandTopic"` // 下发初始化命令的主题，为空时不下发
}

// EstimatorConfig 标志估计配置，Revisions 覆盖或扩展内置参数表
type EstimatorConfig struct {
	Disable   bool                   `mapstructure:"disable"`
	Seed      int64                  `mapstructure:"seed"` // 随机方案的种子，0 表示按时间
	Revisions map[string]interface{} `mapstructure:"revisions"`
}

// DerivedConfig 一条派生量定义
type DerivedConfig struct {
	Type string `mapstructure:"type"`
	Name string `mapstructure:"name"`
	Expr string `mapstructure:"expr"`
}

// SinkConfig 输出端配置
type SinkConfig struct {
	Type   string                 `mapstructure:"type"`   // 输出类型
	Enable bool                   `mapstructure:"enable"` // 是否启用
	Filter []string               `mapstructure:"filter"` // 设备名正则，为空时接收所有设备
	Config map[string]interface{} `mapstructure:"config"` // 自定义配置项
}

// APIConfig HTTP 接口配置
type APIConfig struct {
	Enable       bool     `mapstructure:"enable"`
	Port         string   `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allowOrigins"`
}

type Config struct {
	Version   string          `mapstructure:"version"`
	Log       LogConfig       `mapstructure:"log"`
	Connector ConnectorConfig `mapstructure:"connector"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Derived   []DerivedConfig `mapstructure:"derived"`
	Sink      []SinkConfig    `mapstructure:"sink"`
	API       APIConfig       `mapstructure:"api"`
}

// UnmarshalMqttConfig 解析 MQTT 配置块
func UnmarshalMqttConfig(raw map[string]interface{}) (*MqttConfig, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	if err := v.MergeConfigMap(raw); err != nil {
		return nil, fmt.Errorf("反序列化配置失败: %w", err)
	}
	var config MqttConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("反序列化配置失败: %w", err)
	}
	return &config, nil
}

// InitCommon 用于初始化全局配置，目录下所有 yaml 文件按遍历顺序合并
func InitCommon(configDir string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::")) // 设置 key 分隔符为 ::，因为默认的 . 会和 IP 地址冲突
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.AutomaticEnv() // 读取环境变量
	// 遍历配置目录及其子目录中的所有文件
	err := filepath.WalkDir(configDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("访问路径 %s 失败: %w", filePath, err)
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(filePath)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		v.SetConfigFile(filePath)
		// 读取并合并配置文件 (会覆盖之前的配置)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var common Config
	if err := v.Unmarshal(&common); err != nil {
		return nil, fmt.Errorf("反序列化配置失败: %w", err)
	}
	return &common, nil
}
