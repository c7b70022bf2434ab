package extractor

import "fmt"

// ReadBits 从 buf 中读取 offset 起 width 个比特，按 MSB 优先拼接成整数。
// 小端字段在拼接后按字节翻转。
func ReadBits(buf []byte, offset, width uint, order ByteOrder) (uint64, error) {
	if err := checkRange(buf, offset, width); err != nil {
		return 0, err
	}
	var v uint64
	for i := uint(0); i < width; i++ {
		bit := offset + i
		v <<= 1
		if buf[bit/8]&(0x80>>(bit%8)) != 0 {
			v |= 1
		}
	}
	if order == LittleEndian {
		v = swapBytes(v, width/8)
	}
	return v, nil
}

// WriteBits 是 ReadBits 的逆操作，超出 width 的高位被丢弃
func WriteBits(buf []byte, offset, width uint, order ByteOrder, v uint64) error {
	if err := checkRange(buf, offset, width); err != nil {
		return err
	}
	if width < 64 {
		v &= (uint64(1) << width) - 1
	}
	if order == LittleEndian {
		v = swapBytes(v, width/8)
	}
	for i := uint(0); i < width; i++ {
		bit := offset + i
		mask := byte(0x80 >> (bit % 8))
		if v&(uint64(1)<<(width-1-i)) != 0 {
			buf[bit/8] |= mask
		} else {
			buf[bit/8] &^= mask
		}
	}
	return nil
}

// SignExtend 将 width 位的补码扩展为 int64
func SignExtend(v uint64, width uint) int64 {
	if width == 0 || width >= 64 {
		return int64(v)
	}
	if v&(uint64(1)<<(width-1)) != 0 {
		v |= ^uint64(0) << width
	}
	return int64(v)
}

func checkRange(buf []byte, offset, width uint) error {
	total := uint(len(buf)) * 8
	if width == 0 || width > 64 {
		return fmt.Errorf("%w: width %d not in 1..64", ErrInvalidField, width)
	}
	if width > total || offset > total-width {
		return fmt.Errorf("%w: bits [%d,%d) exceed buffer of %d bits", ErrFieldOutOfRange, offset, offset+width, total)
	}
	return nil
}

func swapBytes(v uint64, n uint) uint64 {
	var out uint64
	for i := uint(0); i < n; i++ {
		b := (v >> (8 * (n - 1 - i))) & 0xff
		out |= b << (8 * i)
	}
	return out
}
