package command

import (
	"context"
	"fmt"
	"io"

	"addongate/internal"
	"addongate/internal/pkg"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 配置目录，与网关一致
var configDir = "yaml"

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "addongate-cli",
		Short:         "AddOnGate CLI for decoding and inspecting add-on payloads",
		Long:          `AddOnGate CLI decodes add-on status payloads offline, dumps bit layouts and builds colour sensor calibration commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", configDir, "配置目录")

	// 添加子命令
	rootCmd.AddCommand(NewTypesCommand())
	rootCmd.AddCommand(NewFormatsCommand())
	rootCmd.AddCommand(NewDecodeCommand())
	rootCmd.AddCommand(NewEncodeCommand())
	rootCmd.AddCommand(NewCalCmdCommand())

	return rootCmd
}

// loadEngine 读取配置并构造 Engine，配置目录不存在时使用内置参数
func loadEngine(w io.Writer) (*internal.Engine, error) {
	// 1. 初始化common yaml
	config, err := pkg.InitCommon(configDir)
	if err != nil {
		fmt.Fprintf(w, "[cli] 加载配置失败, 使用内置参数: %s\n", err)
		config = &pkg.Config{}
	}

	// 2. 命令行不输出日志
	ctx := pkg.WithConfig(context.Background(), config)
	ctx = pkg.WithLogger(ctx, zap.NewNop())

	return internal.NewEngine(ctx)
}
