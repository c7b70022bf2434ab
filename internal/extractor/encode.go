package extractor

import (
	"errors"
	"fmt"
	"math"
)

// ErrValueOutOfRange 待编码的值超出字段位宽
var ErrValueOutOfRange = errors.New("value out of range")

// Encode 按 Format 把 后缀->值 映射编码为原始字节，缺省缩放系数被反算。
// 未给出的字段保持为 0。主要用于命令行构造测试帧。
func Encode(format *Format, values map[string]any) ([]byte, error) {
	buf := make([]byte, format.MinBytes())
	for suffix, val := range values {
		i, ok := format.Index(suffix)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, suffix)
		}
		field := format.fields[i]
		raw, err := encodeValue(field, val)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", suffix, err)
		}
		if err := WriteBits(buf, field.AtBit, field.Bits, field.ByteOrder, raw); err != nil {
			return nil, fmt.Errorf("field %s: %w", suffix, err)
		}
	}
	return buf, nil
}

func encodeValue(field Field, val any) (uint64, error) {
	if field.Kind == Bool {
		b, ok := val.(bool)
		if !ok {
			return 0, fmt.Errorf("%w: bool field expects bool, got %T", ErrInvalidField, val)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	}
	f, err := toFloat(val)
	if err != nil {
		return 0, err
	}
	if field.PostMult == 0 {
		return 0, fmt.Errorf("%w: zero scale cannot be inverted", ErrInvalidField)
	}
	n := math.Round((f - field.PostAdd) / field.PostMult)
	if math.IsNaN(n) {
		return 0, fmt.Errorf("%w: NaN", ErrValueOutOfRange)
	}
	// 上界取 2^bits 本身比较，2^64-1 这类边界在 float64 中无法精确表示
	if field.Kind == Signed {
		lo := -math.Ldexp(1, int(field.Bits)-1)
		hi := math.Ldexp(1, int(field.Bits)-1)
		if n < lo || n >= hi {
			return 0, fmt.Errorf("%w: %v not in [%v,%v)", ErrValueOutOfRange, n, lo, hi)
		}
		return uint64(int64(n)), nil
	}
	hi := math.Ldexp(1, int(field.Bits))
	if n < 0 || n >= hi {
		return 0, fmt.Errorf("%w: %v not in [0,%v)", ErrValueOutOfRange, n, hi)
	}
	return uint64(n), nil
}

func toFloat(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: numeric field expects a number, got %T", ErrInvalidField, val)
	}
}
