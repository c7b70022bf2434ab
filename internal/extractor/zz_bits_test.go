package extractor

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBitsAllOnes(t *testing.T) {
	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	for w := uint(1); w <= 64; w++ {
		v, err := ReadBits(buf, 3, w, BigEndian)
		require.NoError(t, err, "width %d", w)
		var want uint64
		if w == 64 {
			want = ^uint64(0)
		} else {
			want = (uint64(1) << w) - 1
		}
		assert.Equal(t, want, v, "width %d", w)
	}
}

func TestReadBitsMSBFirst(t *testing.T) {
	buf := []byte{0x00, 0x80, 0x40}
	v, err := ReadBits(buf, 8, 1, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	v, err = ReadBits(buf, 9, 1, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	v, err = ReadBits(buf, 17, 1, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	// 跨字节非对齐
	v, err = ReadBits([]byte{0x0f, 0xf0}, 4, 8, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xff), v)
}

func TestReadBitsLittleEndian(t *testing.T) {
	v, err := ReadBits([]byte{0xaa, 0x34, 0x12}, 8, 16, LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234), v)

	v, err = ReadBits([]byte{0xaa, 0x34, 0x12}, 8, 16, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x3412), v)
}

func TestReadBitsOutOfRange(t *testing.T) {
	cases := []struct {
		size          int
		offset, width uint
	}{
		{0, 0, 1},
		{2, 9, 8},
		{2, 16, 1},
		{1, ^uint(0) - 2, 8},
		{8, 0, 65},
	}
	for _, tc := range cases {
		_, err := ReadBits(make([]byte, tc.size), tc.offset, tc.width, BigEndian)
		assert.Error(t, err, "%+v", tc)
	}
	_, err := ReadBits(make([]byte, 2), 9, 8, BigEndian)
	assert.True(t, errors.Is(err, ErrFieldOutOfRange))
}

func TestWriteReadRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for n := 0; n < 500; n++ {
		w := uint(r.Intn(64) + 1)
		off := uint(r.Intn(40))
		buf := make([]byte, 16)
		r.Read(buf)
		var v uint64
		if w == 64 {
			v = r.Uint64()
		} else {
			v = r.Uint64() & ((uint64(1) << w) - 1)
		}
		require.NoError(t, WriteBits(buf, off, w, BigEndian, v))
		got, err := ReadBits(buf, off, w, BigEndian)
		require.NoError(t, err)
		assert.Equal(t, v, got, "offset %d width %d", off, w)
	}
}

func TestWriteBitsKeepsNeighbours(t *testing.T) {
	buf := []byte{0xff, 0xff}
	require.NoError(t, WriteBits(buf, 4, 4, BigEndian, 0))
	assert.Equal(t, []byte{0xf0, 0xff}, buf)
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, int64(-1), SignExtend(0xfff, 12))
	assert.Equal(t, int64(2047), SignExtend(0x7ff, 12))
	assert.Equal(t, int64(-128), SignExtend(0x80, 8))
	assert.Equal(t, int64(-1), SignExtend(^uint64(0), 64))
	assert.Equal(t, int64(-1), SignExtend(1, 1))
}
