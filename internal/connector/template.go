package connector

import (
	"context"
	"fmt"
	"sort"

	"addongate/internal/pkg"

	"go.uber.org/zap"
)

// Template 是所有上游连接器的通用接口
type Template interface {
	Start(out chan<- []byte) error // 启动连接器，收到的原始报告写入 out
	Close() error
	GetType() string
}

// Commander 可以向附加模块下发命令的连接器
type Commander interface {
	Send(cmd string) error
}

// FactoryFunc 代表一个连接器的工厂函数
type FactoryFunc func(ctx context.Context) (connector Template, err error)

// Factories 全局工厂映射，用于注册不同连接器类型的构造函数
var Factories = make(map[string]FactoryFunc)

// Register 注册一个连接器
func Register(connType string, factory FactoryFunc) {
	Factories[connType] = factory
}

// New 按配置创建连接器
var New = func(ctx context.Context) (connector Template, err error) {
	config := pkg.ConfigFromContext(ctx)
	factoryTypes := make([]string, 0, len(Factories))
	for key := range Factories {
		factoryTypes = append(factoryTypes, key)
	}
	sort.Strings(factoryTypes)
	pkg.LoggerFromContext(ctx).Debug("Connector Factory:", zap.Strings("Factories", factoryTypes))
	pkg.LoggerFromContext(ctx).Debug(fmt.Sprintf("===正在启动Connector: %s===", config.Connector.Type))
	factory, ok := Factories[config.Connector.Type]
	if !ok {
		return nil, fmt.Errorf("未找到连接器类型: %s", config.Connector.Type)
	}
	c, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化连接器失败: %v", err)
	}
	return c, nil
}
