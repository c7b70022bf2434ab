package internal

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"addongate/internal/addon"
	"addongate/internal/derive"
	"addongate/internal/estimator"
	"addongate/internal/pkg"

	"go.uber.org/zap"
)

// Engine 解码所需的全部静态依赖：注册表、估计器、派生量。
// 进程启动时按配置构造一次，pipeline、API 和命令行共用。
type Engine struct {
	Registry  *addon.Registry
	Estimator *estimator.Estimator
	Deriver   *derive.Deriver
}

// NewEngine 按 ctx 中的配置构造 Engine，没有配置时使用内置参数
func NewEngine(ctx context.Context) (*Engine, error) {
	config := pkg.ConfigFromContext(ctx)
	logger := pkg.LoggerFromContext(ctx)

	// 1. 估计器参数表
	var est *estimator.Estimator
	if !config.Estimator.Disable {
		table := estimator.DefaultTable()
		revs, err := estimator.DecodeRevisions(config.Estimator.Revisions)
		if err != nil {
			return nil, fmt.Errorf("failed to decode estimator config: %w", err)
		}
		if err := table.Merge(revs); err != nil {
			return nil, fmt.Errorf("failed to merge estimator config: %w", err)
		}
		seed := config.Estimator.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		est = estimator.New(table,
			estimator.WithLogger(logger.With(zap.String("module", "Estimator"))),
			estimator.WithRand(rand.New(rand.NewSource(seed))),
		)
		logger.Debug("estimator revisions loaded", zap.Strings("revisions", est.Revisions()))
	}

	// 2. 派生量
	rules := make([]derive.Rule, 0, len(config.Derived))
	for _, d := range config.Derived {
		rules = append(rules, derive.Rule{Type: d.Type, Name: d.Name, Expr: d.Expr})
	}
	deriver, err := derive.New(rules, logger.With(zap.String("module", "Derive")))
	if err != nil {
		return nil, fmt.Errorf("failed to compile derived rules: %w", err)
	}

	// 3. 注册所有附加模块类型
	env := addon.Env{Estimator: est, Logger: logger.With(zap.String("module", "AddOn"))}
	if deriver.Len() > 0 {
		env.Deriver = deriver
	}
	registry := addon.NewRegistry()
	if err := addon.RegisterAddOns(registry, env); err != nil {
		return nil, fmt.Errorf("failed to register add-ons: %w", err)
	}
	return &Engine{Registry: registry, Estimator: est, Deriver: deriver}, nil
}
