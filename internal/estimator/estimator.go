package estimator

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"addongate/internal/extractor"

	"go.uber.org/zap"
)

// Outcome 一次估计的结果。
// Known 为 false 表示修订版本没有参数，此时不产生任何预测，与“预测为 false”区分开。
type Outcome struct {
	Revision    string
	Known       bool
	Predictions []Prediction
	Skipped     map[string]error // 标志名 -> 跳过原因
}

// Apply 把预测写回 Values
func (o Outcome) Apply(vals extractor.Values) {
	for _, p := range o.Predictions {
		vals[p.Key] = p.Value
	}
}

// Lookup 按标志名查找预测
func (o Outcome) Lookup(flag string) (Prediction, bool) {
	for _, p := range o.Predictions {
		if p.Flag == flag {
			return p, true
		}
	}
	return Prediction{}, false
}

// Estimator 按修订版本选择参数并计算 touch/air 标志
type Estimator struct {
	table  Table
	logger *zap.Logger

	mu   sync.Mutex // 保护 rand
	rand *rand.Rand
}

// Option 构造选项
type Option func(*Estimator)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *Estimator) { e.logger = logger }
}

// WithRand 设置随机方案使用的随机源
func WithRand(r *rand.Rand) Option {
	return func(e *Estimator) { e.rand = r }
}

// New 创建 Estimator，table 为 nil 时使用内置参数表
func New(table Table, opts ...Option) *Estimator {
	if table == nil {
		table = DefaultTable()
	}
	e := &Estimator{
		table:  table,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rand == nil {
		e.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// Lookup 返回修订版本的参数
func (e *Estimator) Lookup(revision string) (Revision, bool) {
	r, ok := e.table[strings.ToLower(revision)]
	return r, ok
}

// Revisions 返回已知修订版本代码（排序）
func (e *Estimator) Revisions() []string {
	out := make([]string, 0, len(e.table))
	for k := range e.table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Estimate 对实例 name 的解码结果做估计，不修改 vals
func (e *Estimator) Estimate(vals extractor.Values, name, revision string) Outcome {
	out := Outcome{Revision: revision}
	rev, ok := e.Lookup(revision)
	if !ok {
		e.logger.Warn("no estimator parameters for revision", zap.String("name", name), zap.String("revision", revision))
		return out
	}
	out.Known = true
	for _, m := range rev.Models() {
		p, err := m.Predict(vals, name, e.draw)
		if errors.Is(err, ErrDisabled) {
			continue
		}
		if err != nil {
			if out.Skipped == nil {
				out.Skipped = make(map[string]error)
			}
			out.Skipped[m.Flag()] = err
			e.logger.Debug("estimator skipped flag", zap.String("name", name), zap.String("flag", m.Flag()), zap.Error(err))
			continue
		}
		out.Predictions = append(out.Predictions, p)
	}
	return out
}

func (e *Estimator) draw() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rand.Float64()
}
