package band

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack_KnownLayout(t *testing.T) {
	tests := []struct {
		name     string
		in       Frame
		expected Packed
	}{
		{
			name:     "全零",
			in:       Frame{},
			expected: Packed{},
		},
		{
			name:     "全满",
			in:       Frame{7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7},
			expected: Packed{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name:     "首个频段占最低位",
			in:       Frame{5},
			expected: Packed{0x05, 0, 0, 0, 0, 0},
		},
		{
			name: "第3个频段跨越字节边界",
			// 比特 6..8：低2位进 byte0 高位，最高位进 byte1 最低位
			in:       Frame{0, 0, 7},
			expected: Packed{0xC0, 0x01, 0, 0, 0, 0},
		},
		{
			name:     "最后一个频段占最高3位",
			in:       Frame{15: 7},
			expected: Packed{0, 0, 0, 0, 0, 0xE0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Pack(tt.in))
			assert.Equal(t, tt.in, Unpack(tt.expected))
		})
	}
}

func TestPack_MasksOutOfRangeInput(t *testing.T) {
	// 8 = 0b1000，掩码后为 0，不能污染相邻频段
	got := Pack(Frame{8, 1})
	assert.Equal(t, Packed{0x08, 0, 0, 0, 0, 0}, got)
	assert.Equal(t, Frame{0, 1}, Unpack(got))
}

func TestRoundTrip_EveryPositionEveryValue(t *testing.T) {
	for pos := 0; pos < NumBands; pos++ {
		for v := uint8(0); v <= MaxValue; v++ {
			var f Frame
			f[pos] = v
			require.Equal(t, f, Unpack(Pack(f)), "pos=%d v=%d", pos, v)
		}
	}
}

func TestRoundTrip_Random(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		var f Frame
		for j := range f {
			f[j] = uint8(rng.Intn(MaxValue + 1))
		}
		require.Equal(t, f, Unpack(Pack(f)))
	}
}

func TestUnpack_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		var p Packed
		rng.Read(p[:])
		for j, v := range Unpack(p) {
			require.LessOrEqual(t, v, uint8(MaxValue), "band %d", j)
		}
	}
}

func TestUnpackBytes(t *testing.T) {
	_, err := UnpackBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrFrameSize)

	f := Frame{3, 0, 7, 1, 2, 4, 6, 5, 0, 0, 7, 7, 1, 1, 2, 3}
	got, err := UnpackBytes(PackBytes(f))
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, uint8(0), Clamp(-3))
	assert.Equal(t, uint8(4), Clamp(4))
	assert.Equal(t, uint8(MaxValue), Clamp(12))
}
