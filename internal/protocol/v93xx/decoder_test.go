package v93xx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte{0x7D, 0x04, 0x02, 0x2C})
	require.NoError(t, err)

	assert.Equal(t, byte(0x04), req.Cmd1)
	assert.Equal(t, byte(0x02), req.Cmd2)
	assert.Equal(t, uint8(0x02), req.Address)
	assert.Equal(t, OpBroadcast, req.Operation)
	assert.Equal(t, uint8(1), req.DeviceAddress)
	assert.Equal(t, 1, req.BlockCount)
	assert.Equal(t, byte(0x2C), req.ChecksumExpected)
	assert.Equal(t, byte(0x2C), req.ChecksumReceived)
	assert.Equal(t, VerdictValid, req.Verdict)
	// 默认解码器不带寄存器表
	assert.Empty(t, req.Register)
}

func TestDecodeRequest_Operation(t *testing.T) {
	tests := []struct {
		name string
		cmd1 byte
		want Operation
	}{
		{name: "广播", cmd1: 0x00, want: OpBroadcast},
		{name: "读", cmd1: 0x01, want: OpRead},
		{name: "写", cmd1: 0x02, want: OpWrite},
		{name: "块操作", cmd1: 0x33, want: OpBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest(EncodeRequest(tt.cmd1, 0x10))
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Operation)
			assert.Equal(t, VerdictValid, req.Verdict)
		})
	}
}

func TestDecodeRequest_AddressMask(t *testing.T) {
	req, err := DecodeRequest(EncodeRequest(0x01, 0x82))
	require.NoError(t, err)
	assert.Equal(t, uint8(0x02), req.Address)
	assert.Equal(t, byte(0x82), req.Cmd2)
}

func TestDecodeRequest_Cmd1Fields(t *testing.T) {
	cmd1 := BuildCmd1(OpBlock, 2, 8)
	assert.Equal(t, byte(0x7B), cmd1)

	req, err := DecodeRequest(EncodeRequest(cmd1, 0x20))
	require.NoError(t, err)
	assert.Equal(t, OpBlock, req.Operation)
	assert.Equal(t, uint8(2), req.DeviceAddress)
	assert.Equal(t, 8, req.BlockCount)
}

func TestDecodeRequest_Mismatch(t *testing.T) {
	req, err := DecodeRequest([]byte{0x7D, 0x04, 0x02, 0x2D})
	require.NoError(t, err)
	assert.Equal(t, VerdictMismatch, req.Verdict)
	assert.Equal(t, byte(0x2C), req.ChecksumExpected)
	assert.Equal(t, byte(0x2D), req.ChecksumReceived)
}

func TestDecode_ShapeErrors(t *testing.T) {
	tests := []struct {
		name    string
		decode  func() error
		wantErr error
	}{
		{
			name: "请求首字节错误",
			decode: func() error {
				_, err := DecodeRequest([]byte{0x7E, 0x04, 0x02, 0x2C})
				return err
			},
			wantErr: ErrInvalidHeader,
		},
		{
			name: "请求字节不足",
			decode: func() error {
				_, err := DecodeRequest([]byte{0x7D, 0x04})
				return err
			},
			wantErr: ErrShortBuffer,
		},
		{
			name: "请求长度过长",
			decode: func() error {
				_, err := DecodeRequest([]byte{0x7D, 0x04, 0x02, 0x2C, 0x00})
				return err
			},
			wantErr: ErrBadLength,
		},
		{
			name: "响应首字节错误",
			decode: func() error {
				_, err := DecodeResponse([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}, nil)
				return err
			},
			wantErr: ErrInvalidHeader,
		},
		{
			name: "响应字节不足",
			decode: func() error {
				_, err := DecodeResponse([]byte{0x7D, 0x01, 0x02, 0x03}, nil)
				return err
			},
			wantErr: ErrShortBuffer,
		},
		{
			name: "空缓冲",
			decode: func() error {
				_, err := DecodeResponse(nil, nil)
				return err
			},
			wantErr: ErrShortBuffer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.decode(), tt.wantErr)
		})
	}
}

func TestDecodeResponse_WithPrior(t *testing.T) {
	cmd := CommandContext{Cmd1: 0x05, Cmd2: 0x02}
	frame := EncodeResponse(cmd, 0x12345678)

	resp, err := DecodeResponse(frame, &cmd)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), resp.Value)
	assert.Equal(t, [4]byte{0x78, 0x56, 0x34, 0x12}, resp.Data)
	require.NotNil(t, resp.ChecksumExpected)
	assert.Equal(t, frame[5], *resp.ChecksumExpected)
	assert.Equal(t, VerdictValid, resp.Verdict)
	require.NotNil(t, resp.Command)
	assert.Equal(t, cmd, *resp.Command)
}

func TestDecodeResponse_WrongPrior(t *testing.T) {
	frame := EncodeResponse(CommandContext{Cmd1: 0x05, Cmd2: 0x02}, 0x01)
	other := CommandContext{Cmd1: 0x05, Cmd2: 0x03}

	resp, err := DecodeResponse(frame, &other)
	require.NoError(t, err)
	assert.Equal(t, VerdictMismatch, resp.Verdict)
}

func TestDecodeResponse_NoPrior(t *testing.T) {
	frame := EncodeResponse(CommandContext{Cmd1: 0x05, Cmd2: 0x02}, 0xDEADBEEF)

	resp, err := DecodeResponse(frame, nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictUndecidable, resp.Verdict)
	assert.Nil(t, resp.ChecksumExpected)
	assert.Nil(t, resp.Command)
	assert.Equal(t, uint32(0xDEADBEEF), resp.Value)
	assert.Equal(t, frame[5], resp.ChecksumReceived)
}

func TestDecoder_RegisterNames(t *testing.T) {
	d := NewDecoder(nil, DefaultRegisterMap())

	req, err := d.DecodeRequest(EncodeRead(0, 0x02))
	require.NoError(t, err)
	assert.Equal(t, "DSP_CTRL0", req.Register)

	req, err = d.DecodeRequest(EncodeRead(0, 0x7D))
	require.NoError(t, err)
	assert.Equal(t, "SYS_IOCFG0", req.Register)
}

func TestEncodeRequest_RoundTrip(t *testing.T) {
	for cmd1 := 0; cmd1 < 256; cmd1 += 17 {
		for cmd2 := 0; cmd2 < 128; cmd2 += 13 {
			req, err := DecodeRequest(EncodeRequest(byte(cmd1), byte(cmd2)))
			require.NoError(t, err)
			assert.Equal(t, VerdictValid, req.Verdict)
			assert.Equal(t, byte(cmd1), req.Cmd1)
		}
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []byte
	}{
		{name: "空格分隔", input: "7D 04 02 2C", want: []byte{0x7D, 0x04, 0x02, 0x2C}},
		{name: "紧凑", input: "7d04022c", want: []byte{0x7D, 0x04, 0x02, 0x2C}},
		{name: "0x与逗号", input: "0x7D,0x4, 0x02,\n0x2C", want: []byte{0x7D, 0x04, 0x02, 0x2C}},
		{name: "空串", input: "", want: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHex(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseHex("7D ZZ")
	assert.Error(t, err)
}

func TestHexBytes_String(t *testing.T) {
	assert.Equal(t, "7D 04 02 2C", HexBytes{0x7D, 0x04, 0x02, 0x2C}.String())
	assert.Equal(t, "", HexBytes(nil).String())
}
