package extractor

import (
	"fmt"
)

// Format 是某一类附加模块的位布局定义。
// 字段集合在创建后不可变，缩放系数的运行时修改由 Extractor 的标定向量承担。
type Format struct {
	name     string
	fields   []Field
	index    map[string]int
	minBytes int
}

// NewFormat 校验并创建一个布局定义
func NewFormat(name string, fields ...Field) (*Format, error) {
	f := &Format{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	var maxEnd uint
	for i, field := range fields {
		if err := field.validate(); err != nil {
			return nil, fmt.Errorf("format %s field #%d: %w", name, i, err)
		}
		if _, dup := f.index[field.Suffix]; dup {
			return nil, fmt.Errorf("format %s: %w: duplicate suffix %q", name, ErrInvalidField, field.Suffix)
		}
		f.index[field.Suffix] = i
		f.fields = append(f.fields, field)
		if field.End() > maxEnd {
			maxEnd = field.End()
		}
	}
	f.minBytes = int((maxEnd + 7) / 8)
	return f, nil
}

// MustFormat 用于包级静态定义，定义非法时 panic
func MustFormat(name string, fields ...Field) *Format {
	f, err := NewFormat(name, fields...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Format) Name() string { return f.name }

// Len 字段个数
func (f *Format) Len() int { return len(f.fields) }

// Field 返回第 i 个字段
func (f *Format) Field(i int) Field { return f.fields[i] }

// Fields 返回字段列表的副本
func (f *Format) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

// Index 按后缀查找字段下标
func (f *Format) Index(suffix string) (int, bool) {
	i, ok := f.index[suffix]
	return i, ok
}

// MinBytes 完整解码所需的最少字节数
func (f *Format) MinBytes() int { return f.minBytes }
