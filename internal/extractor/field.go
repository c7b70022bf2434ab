package extractor

import (
	"errors"
	"fmt"
)

// FieldKind 字段的取值类型
type FieldKind int

const (
	Bool     FieldKind = iota // 单比特布尔量
	Unsigned                  // 无符号整数
	Signed                    // 有符号整数（补码）
)

func (k FieldKind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// ByteOrder 多字节字段的字节序
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

var (
	// ErrFieldOutOfRange 字段的比特区间超出了原始数据长度
	ErrFieldOutOfRange = errors.New("field out of range")
	// ErrInvalidField 字段定义本身不合法
	ErrInvalidField = errors.New("invalid field definition")
	// ErrUnknownField 按名称或下标找不到字段
	ErrUnknownField = errors.New("unknown field")
)

// Field 描述原始数据中的一个位域
type Field struct {
	Suffix    string    `yaml:"suffix"`    // 输出键后缀，实际键为 实例名+Suffix
	AtBit     uint      `yaml:"atBit"`     // 起始比特，0 为第一个字节的最高位
	Bits      uint      `yaml:"bits"`      // 位宽 1..64
	Kind      FieldKind `yaml:"kind"`      // 取值类型
	PostMult  float64   `yaml:"postMult"`  // 缺省缩放系数
	PostAdd   float64   `yaml:"postAdd"`   // 缩放后偏移
	ByteOrder ByteOrder `yaml:"byteOrder"` // 字节序，缺省大端
}

// End 返回字段结束比特（不含）
func (f Field) End() uint {
	return f.AtBit + f.Bits
}

func (f Field) validate() error {
	if f.Suffix == "" {
		return fmt.Errorf("%w: empty suffix", ErrInvalidField)
	}
	if f.Bits == 0 || f.Bits > 64 {
		return fmt.Errorf("%w: %s width %d not in 1..64", ErrInvalidField, f.Suffix, f.Bits)
	}
	switch f.Kind {
	case Bool:
		if f.Bits != 1 {
			return fmt.Errorf("%w: bool field %s must be 1 bit wide, got %d", ErrInvalidField, f.Suffix, f.Bits)
		}
	case Unsigned, Signed:
	default:
		return fmt.Errorf("%w: %s has unknown kind %v", ErrInvalidField, f.Suffix, f.Kind)
	}
	if f.ByteOrder == LittleEndian && f.Bits%8 != 0 {
		return fmt.Errorf("%w: little-endian field %s width %d is not a whole number of bytes", ErrInvalidField, f.Suffix, f.Bits)
	}
	return nil
}

// BoolField 构造一个布尔位
func BoolField(suffix string, atBit uint) Field {
	return Field{Suffix: suffix, AtBit: atBit, Bits: 1, Kind: Bool, PostMult: 1}
}

// UnsignedField 构造一个大端无符号整数字段
func UnsignedField(suffix string, atBit, bits uint, postMult, postAdd float64) Field {
	return Field{Suffix: suffix, AtBit: atBit, Bits: bits, Kind: Unsigned, PostMult: postMult, PostAdd: postAdd}
}

// SignedField 构造一个大端有符号整数字段
func SignedField(suffix string, atBit, bits uint, postMult, postAdd float64) Field {
	return Field{Suffix: suffix, AtBit: atBit, Bits: bits, Kind: Signed, PostMult: postMult, PostAdd: postAdd}
}

// WithLittleEndian 返回字节序改为小端的副本
func (f Field) WithLittleEndian() Field {
	f.ByteOrder = LittleEndian
	return f
}
