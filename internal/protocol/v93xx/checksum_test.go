package v93xx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{name: "读请求 cmd=04 02", data: []byte{0x04, 0x02}, expected: 0x2C},
		{name: "写请求 cmd=40 02", data: []byte{0x40, 0x02}, expected: 0xF0},
		{name: "4字节数据", data: []byte{0x01, 0x02, 0x03, 0x04}, expected: 0x28},
		{name: "全0", data: []byte{0x00, 0x00, 0x00, 0x00}, expected: 0x32},
		{name: "全FF", data: []byte{0xFF, 0xFF, 0xFF, 0xFF}, expected: 0x36},
		{name: "空数据", data: []byte{}, expected: 0x32},
		{name: "nil", data: nil, expected: 0x32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeChecksum(tt.data)
			assert.Equal(t, tt.expected, got, "ComputeChecksum(% X) = 0x%02X", tt.data, got)
		})
	}
}

func TestComputeChecksum_Deterministic(t *testing.T) {
	// 遍历所有单字节与部分双字节输入，重复调用结果一致
	for a := 0; a < 256; a++ {
		p := []byte{byte(a), byte(255 - a)}
		first := ComputeChecksum(p)
		assert.Equal(t, first, ComputeChecksum(p))
		assert.Equal(t, first, ComputeChecksum(append([]byte(nil), p...)))
	}
}

func TestComputeChecksum_DoesNotMutateInput(t *testing.T) {
	p := []byte{0x7D, 0x01, 0x02}
	_ = ComputeChecksum(p)
	assert.Equal(t, []byte{0x7D, 0x01, 0x02}, p)
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate(0xAB, 0xAB))
	assert.False(t, Validate(0xAB, 0xCD))
}

func TestBuildChecksummed(t *testing.T) {
	out := BuildChecksummed([]byte{0x04, 0x02})
	assert.Equal(t, []byte{0x04, 0x02, 0x2C}, out)

	out = BuildChecksummed(nil)
	assert.Equal(t, []byte{0x32}, out)
}

func TestDialectByName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "默认", input: "", want: DialectV93xx},
		{name: "v93xx", input: "v93xx", want: DialectV93xx},
		{name: "sum 别名", input: "SUM", want: DialectV93xx},
		{name: "regframe", input: "regframe", want: DialectRegFrame},
		{name: "xor 别名", input: " xor ", want: DialectRegFrame},
		{name: "未知", input: "crc16", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DialectByName(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownDialect)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestXORParity(t *testing.T) {
	var d XORParity
	assert.Equal(t, byte(0x00), d.Checksum(nil))
	assert.Equal(t, byte(0x4E), d.Checksum([]byte{0x7D, 0x11, 0x22, 0x00}))
	// 两种方言对同一输入结果不同，不能互换
	assert.NotEqual(t, SumComplement{}.Checksum([]byte{0x04, 0x02}), d.Checksum([]byte{0x04, 0x02}))
}
