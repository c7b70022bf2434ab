package derive

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"addongate/internal/extractor"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"
)

// AnyType 匹配所有附加模块类型
const AnyType = "*"

var ErrBadRule = errors.New("invalid derived rule")

// Rule 一条派生量定义，来自配置 derived 段
type Rule struct {
	Type string `mapstructure:"type" json:"type"` // 附加模块类型名，* 表示全部
	Name string `mapstructure:"name" json:"name"` // 输出键后缀
	Expr string `mapstructure:"expr" json:"expr"`
}

// DEnv 表达式执行环境。
// V 的键为字段后缀（不含实例名），前面规则的输出对后面的规则可见。
type DEnv struct {
	V    map[string]any
	Name string
	Type string
}

type compiled struct {
	rule    Rule
	program *vm.Program
}

// Deriver 按类型执行编译后的派生量表达式
type Deriver struct {
	rules  []compiled
	logger *zap.Logger
}

// New 编译所有规则，任何一条编译失败都返回错误
func New(rules []Rule, logger *zap.Logger) (*Deriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deriver{logger: logger}
	for i, r := range rules {
		if r.Name == "" || strings.TrimSpace(r.Expr) == "" {
			return nil, fmt.Errorf("%w: rule %d needs name and expr", ErrBadRule, i)
		}
		if r.Type == "" {
			r.Type = AnyType
		}
		program, err := expr.Compile(r.Expr, BuildExprOptions()...)
		if err != nil {
			return nil, fmt.Errorf("编译派生量 %s 失败 (expr: %s): %w", r.Name, r.Expr, err)
		}
		d.rules = append(d.rules, compiled{rule: r, program: program})
	}
	logger.Debug("derived rules compiled", zap.Int("count", len(d.rules)))
	return d, nil
}

// Len 规则数量
func (d *Deriver) Len() int { return len(d.rules) }

// Derive 在 vals 上执行适用于 typeName 的规则，输出键为 name+规则名。
// 单条规则失败不影响其他规则，所有错误合并返回。
func (d *Deriver) Derive(typeName, name string, vals extractor.Values) error {
	env := &DEnv{Name: name, Type: typeName, V: make(map[string]any, len(vals))}
	for k, v := range vals {
		env.V[strings.TrimPrefix(k, name)] = v
	}

	var errs []error
	for _, c := range d.rules {
		if c.rule.Type != AnyType && c.rule.Type != typeName {
			continue
		}
		out, err := expr.Run(c.program, env)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", name, c.rule.Name, err))
			continue
		}
		v, err := normalize(out)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", name, c.rule.Name, err))
			continue
		}
		vals[name+c.rule.Name] = v
		env.V[c.rule.Name] = v
	}
	return errors.Join(errs...)
}

// 输出统一为 float64 或 bool
func normalize(out any) (any, error) {
	switch v := out.(type) {
	case float64:
		return v, nil
	case bool:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("%w: result must be number or bool, got %T", ErrBadRule, out)
	}
}

// BuildExprOptions 返回编译派生量表达式的 expr 选项
func BuildExprOptions() []expr.Option {
	options := []expr.Option{
		expr.Env(&DEnv{}),
	}
	return append(options, helpers...)
}

var helpers = []expr.Option{
	expr.Function(
		"ratio",
		func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, errors.New("ratio 需要两个参数")
			}
			a, ok := params[0].(float64)
			if !ok {
				return nil, fmt.Errorf("ratio 第一个参数需要 float64, 得到 %T", params[0])
			}
			b, ok := params[1].(float64)
			if !ok {
				return nil, fmt.Errorf("ratio 第二个参数需要 float64, 得到 %T", params[1])
			}
			if b == 0 {
				return 0.0, nil
			}
			return a / b, nil
		},
		new(func(float64, float64) float64),
	),
	expr.Function(
		"sqrt",
		func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, errors.New("sqrt 需要一个参数")
			}
			x, ok := params[0].(float64)
			if !ok {
				return nil, fmt.Errorf("sqrt 参数需要 float64, 得到 %T", params[0])
			}
			return math.Sqrt(x), nil
		},
		new(func(float64) float64),
	),
}
