package estimator

import (
	"errors"
	"fmt"
	"math"

	"addongate/internal/extractor"
)

// Scheme 标识模型的计算方式
type Scheme string

const (
	// SchemeQuadratic 双预测量二次逻辑回归，p>0.5 判真
	SchemeQuadratic Scheme = "quadratic"
	// SchemeLinear 单预测量逻辑回归，按 p 做伯努利抽样，结果写入 flag+"^"
	SchemeLinear Scheme = "linear"
	// SchemeDisabled 不做预测
	SchemeDisabled Scheme = "none"
)

// StochasticMarker 随机方案写回键的后缀，与固件上报的同名标志区分
const StochasticMarker = "^"

var (
	ErrDisabled         = errors.New("model disabled")
	ErrMissingPredictor = errors.New("missing predictor")
	ErrBadParams        = errors.New("bad model parameters")
)

// Prediction 一次预测的结果
type Prediction struct {
	Flag        string  `json:"flag"`
	Key         string  `json:"key"` // 写回 Values 的键
	Value       bool    `json:"value"`
	Probability float64 `json:"probability"`
	Scheme      Scheme  `json:"scheme"`
}

// Model 单个标志的估计模型。
// draw 返回 [0,1) 的随机数，只有随机方案会调用。
type Model interface {
	Flag() string
	Scheme() Scheme
	Predict(vals extractor.Values, name string, draw func() float64) (Prediction, error)
}

// Quadratic p = σ(p0 + p1*x1 + p2*x2 + p3*x1² + p4*x2²)
type Quadratic struct {
	FlagName   string
	Predictors [2]string
	Params     [5]float64
}

func (m Quadratic) Flag() string   { return m.FlagName }
func (m Quadratic) Scheme() Scheme { return SchemeQuadratic }

// Probability 直接按公式计算
func (m Quadratic) Probability(x1, x2 float64) float64 {
	p := m.Params
	return logistic(p[0] + p[1]*x1 + p[2]*x2 + p[3]*x1*x1 + p[4]*x2*x2)
}

func (m Quadratic) Predict(vals extractor.Values, name string, _ func() float64) (Prediction, error) {
	x1, err := predictor(vals, name, m.Predictors[0])
	if err != nil {
		return Prediction{}, err
	}
	x2, err := predictor(vals, name, m.Predictors[1])
	if err != nil {
		return Prediction{}, err
	}
	p := m.Probability(x1, x2)
	return Prediction{
		Flag:        m.FlagName,
		Key:         name + m.FlagName,
		Value:       p > 0.5,
		Probability: p,
		Scheme:      SchemeQuadratic,
	}, nil
}

// Linear p = σ(p0 + p1*x)，结果由 draw() < p 决定
type Linear struct {
	FlagName  string
	Predictor string
	Params    [2]float64
}

func (m Linear) Flag() string   { return m.FlagName }
func (m Linear) Scheme() Scheme { return SchemeLinear }

func (m Linear) Probability(x float64) float64 {
	return logistic(m.Params[0] + m.Params[1]*x)
}

func (m Linear) Predict(vals extractor.Values, name string, draw func() float64) (Prediction, error) {
	x, err := predictor(vals, name, m.Predictor)
	if err != nil {
		return Prediction{}, err
	}
	p := m.Probability(x)
	return Prediction{
		Flag:        m.FlagName,
		Key:         name + m.FlagName + StochasticMarker,
		Value:       draw() < p,
		Probability: p,
		Scheme:      SchemeLinear,
	}, nil
}

// Disabled 占位模型，该修订版本没有可用的参数
type Disabled struct {
	FlagName string
}

func (m Disabled) Flag() string   { return m.FlagName }
func (m Disabled) Scheme() Scheme { return SchemeDisabled }

func (m Disabled) Predict(extractor.Values, string, func() float64) (Prediction, error) {
	return Prediction{}, ErrDisabled
}

func logistic(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func predictor(vals extractor.Values, name, suffix string) (float64, error) {
	x, ok := vals.Number(name + suffix)
	if !ok {
		return 0, fmt.Errorf("%w: %s%s", ErrMissingPredictor, name, suffix)
	}
	return x, nil
}
