package addon

import (
	"errors"
	"fmt"

	"addongate/internal/estimator"
	"addongate/internal/extractor"

	"go.uber.org/zap"
)

var (
	ErrNotCalibratable   = errors.New("add-on has no calibration")
	ErrCalibrationLength = errors.New("calibration needs 4 values")
)

// Status 一条状态报文解码后的结果，交给上层转发后即丢弃
type Status struct {
	ID       int              `json:"id"`
	Name     string           `json:"name"`
	WhoAmI   string           `json:"whoAmI"`
	Revision string           `json:"revision"`
	Status   uint8            `json:"status"`
	Vals     extractor.Values `json:"vals"`

	// Outcome 为 nil 表示该类型不做估计；Known=false 表示修订版本没有参数
	Outcome *estimator.Outcome `json:"-"`
}

// ReportMsg 初始化握手的回报
type ReportMsg struct {
	MsgType  string `json:"msgType"`
	ElemName string `json:"elemName"`
	HexRd    string `json:"hexRd"`
	MsgKey   string `json:"msgKey"`
	Rslt     string `json:"rslt"`
}

// Deriver 在解码结果上追加派生量
type Deriver interface {
	Derive(typeName, name string, vals extractor.Values) error
}

// Env 工厂函数共享的依赖
type Env struct {
	Estimator *estimator.Estimator
	Deriver   Deriver
	Logger    *zap.Logger
}

// AddOn 一个已连接的附加模块实例
type AddOn struct {
	kind     Kind
	name     string
	family   string
	whoAmI   string
	revision string
	initCmd  string

	extractor *extractor.Extractor
	estimator *estimator.Estimator
	deriver   Deriver
	logger    *zap.Logger
}

func newAddOn(kind Kind, name, family, whoAmI, revision string, env Env) *AddOn {
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AddOn{
		kind:     kind,
		name:     name,
		family:   family,
		whoAmI:   whoAmI,
		revision: revision,
		deriver:  env.Deriver,
		logger:   logger.With(zap.String("addon", name), zap.String("type", kind.TypeName())),
	}
	if f := kind.FormatFor(revision, env.Estimator); f != nil {
		a.extractor = extractor.New(name, f)
	}
	if kind.HasEstimator() {
		a.estimator = env.Estimator
	}
	if kind == KindColour {
		a.initCmd = ColourInitCommand(name)
	}
	return a
}

func (a *AddOn) Kind() Kind         { return a.kind }
func (a *AddOn) Name() string       { return a.name }
func (a *AddOn) Family() string     { return a.family }
func (a *AddOn) WhoAmI() string     { return a.whoAmI }
func (a *AddOn) Revision() string   { return a.revision }
func (a *AddOn) TypeName() string   { return a.kind.TypeName() }
func (a *AddOn) InitCmd() string    { return a.initCmd }
func (a *AddOn) HasPayload() bool   { return a.extractor != nil }
func (a *AddOn) HasEstimator() bool { return a.estimator != nil }

// ProcessPublishedData 解码一条状态报文。
// 步骤：位域解码 -> 标志估计 -> 派生量。解码失败时整条记录作废。
func (a *AddOn) ProcessPublishedData(id int, statusByte uint8, raw []byte) (*Status, error) {
	status := &Status{
		ID:       id,
		Name:     a.name,
		WhoAmI:   a.whoAmI,
		Revision: a.revision,
		Status:   statusByte,
		Vals:     extractor.Values{},
	}
	if a.extractor == nil {
		return status, nil
	}

	// 1. 位域解码
	vals, err := a.extractor.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", a.name, err)
	}
	status.Vals = vals

	// 2. 标志估计
	if a.estimator != nil {
		outcome := a.estimator.Estimate(vals, a.name, a.revision)
		outcome.Apply(vals)
		status.Outcome = &outcome
	}

	// 3. 派生量
	if a.deriver != nil {
		if err := a.deriver.Derive(a.kind.TypeName(), a.name, vals); err != nil {
			a.logger.Warn("derived values failed", zap.Error(err))
		}
	}
	return status, nil
}

// ProcessInit 处理初始化命令的回报，只有颜色传感器使用
func (a *AddOn) ProcessInit(msg ReportMsg) {
	if a.kind != KindColour {
		return
	}
	a.logger.Debug("addon init data received", zap.Any("report", msg))
	if msg.ElemName != a.name {
		a.logger.Warn("addon init report for wrong element, calibration skipped", zap.String("elemName", msg.ElemName))
		return
	}
	if msg.HexRd == "" {
		return
	}
	raw, err := ParseCalibrationReport(msg.HexRd)
	if err != nil {
		a.logger.Warn("malformed calibration payload, calibration skipped", zap.String("hexRd", msg.HexRd), zap.Error(err))
		return
	}
	cal := a.GetCalibration()
	for i, v := range raw {
		if v > 0 {
			cal[i] = 255 / float64(v)
		}
	}
	if err := a.SetCalibration(cal); err != nil {
		a.logger.Warn("set calibration failed", zap.Error(err))
	}
}

// SetCalibration 设置颜色传感器 Clear/Red/Green/Blue 四个通道的缩放系数
func (a *AddOn) SetCalibration(cal []float64) error {
	if a.kind != KindColour {
		return ErrNotCalibratable
	}
	if len(cal) != colourChannels {
		a.logger.Warn("colour sensor calibration called with wrong number of values", zap.Int("got", len(cal)))
		return fmt.Errorf("%w: got %d", ErrCalibrationLength, len(cal))
	}
	for i, v := range cal {
		if err := a.extractor.SetScaleAt(i, v); err != nil {
			return err
		}
	}
	a.extractor.Recompute()
	a.logger.Debug("colour sensor calibration set", zap.Float64s("cal", cal))
	return nil
}

// GetCalibration 返回当前四个通道的缩放系数，0 视为 1
func (a *AddOn) GetCalibration() []float64 {
	if a.kind != KindColour {
		return nil
	}
	cal := make([]float64, colourChannels)
	for i := range cal {
		v, _ := a.extractor.ScaleAt(i)
		if v == 0 {
			v = 1
		}
		cal[i] = v
	}
	return cal
}

// Info 实例的只读快照
type Info struct {
	Name        string    `json:"name"`
	TypeName    string    `json:"typeName"`
	Family      string    `json:"family"`
	WhoAmI      string    `json:"whoAmI"`
	Revision    string    `json:"revision"`
	Calibration []float64 `json:"calibration,omitempty"`
}

func (a *AddOn) Info() Info {
	return Info{
		Name:        a.name,
		TypeName:    a.kind.TypeName(),
		Family:      a.family,
		WhoAmI:      a.whoAmI,
		Revision:    a.revision,
		Calibration: a.GetCalibration(),
	}
}
