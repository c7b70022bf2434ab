package extractor

import (
	"fmt"
)

// Values 是一次解码的输出，键为 实例名+字段后缀，值为 float64 或 bool
type Values map[string]any

// Number 按键读取数值
func (v Values) Number(key string) (float64, bool) {
	n, ok := v[key].(float64)
	return n, ok
}

// Flag 按键读取布尔量
func (v Values) Flag(key string) (bool, bool) {
	b, ok := v[key].(bool)
	return b, ok
}

// Extractor 将某个实例的原始状态字节按 Format 解码为 Values。
//
// 标定向量（每个字段一个缩放系数）与 Format 分离保存，Format 可以在多个实例间共享。
// Extractor 本身不加锁：标定写入只发生在初始化握手阶段，调用方需保证不与 Extract 并发。
type Extractor struct {
	name   string
	format *Format
	scale  []float64

	// 预计算结果，scale 变化后需要 Recompute
	keys  []string
	mult  []float64
	stale bool
}

// New 为实例 name 创建 Extractor，标定向量取 Format 的缺省 PostMult
func New(name string, format *Format) *Extractor {
	e := &Extractor{
		name:   name,
		format: format,
		scale:  make([]float64, format.Len()),
	}
	for i, field := range format.fields {
		e.scale[i] = field.PostMult
	}
	e.Recompute()
	return e
}

func (e *Extractor) Name() string { return e.name }

func (e *Extractor) Format() *Format { return e.format }

// Key 返回字段后缀对应的输出键
func (e *Extractor) Key(suffix string) string { return e.name + suffix }

// Scale 读取字段当前缩放系数
func (e *Extractor) Scale(suffix string) (float64, error) {
	i, ok := e.format.Index(suffix)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownField, suffix)
	}
	return e.scale[i], nil
}

// ScaleAt 读取第 i 个字段当前缩放系数
func (e *Extractor) ScaleAt(i int) (float64, error) {
	if i < 0 || i >= len(e.scale) {
		return 0, fmt.Errorf("%w: index %d", ErrUnknownField, i)
	}
	return e.scale[i], nil
}

// SetScale 修改字段缩放系数，下一次 Extract 之前需要 Recompute
func (e *Extractor) SetScale(suffix string, v float64) error {
	i, ok := e.format.Index(suffix)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, suffix)
	}
	return e.SetScaleAt(i, v)
}

// SetScaleAt 按下标修改缩放系数
func (e *Extractor) SetScaleAt(i int, v float64) error {
	if i < 0 || i >= len(e.scale) {
		return fmt.Errorf("%w: index %d", ErrUnknownField, i)
	}
	e.scale[i] = v
	e.stale = true
	return nil
}

// Recompute 重建输出键和乘数表，可重复调用
func (e *Extractor) Recompute() {
	if e.keys == nil {
		e.keys = make([]string, e.format.Len())
		for i, field := range e.format.fields {
			e.keys[i] = e.name + field.Suffix
		}
	}
	if e.mult == nil {
		e.mult = make([]float64, len(e.scale))
	}
	copy(e.mult, e.scale)
	e.stale = false
}

// Extract 解码一帧原始数据。
// 任何一个字段越界都会使整条记录失败，不返回部分结果。
func (e *Extractor) Extract(raw []byte) (Values, error) {
	if e.stale {
		e.Recompute()
	}
	out := make(Values, e.format.Len())
	for i, field := range e.format.fields {
		v, err := ReadBits(raw, field.AtBit, field.Bits, field.ByteOrder)
		if err != nil {
			return nil, fmt.Errorf("%s field %s: %w", e.name, field.Suffix, err)
		}
		switch field.Kind {
		case Bool:
			out[e.keys[i]] = v != 0
		case Signed:
			out[e.keys[i]] = float64(SignExtend(v, field.Bits))*e.mult[i] + field.PostAdd
		default:
			out[e.keys[i]] = float64(v)*e.mult[i] + field.PostAdd
		}
	}
	return out, nil
}
