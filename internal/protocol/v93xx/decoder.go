package v93xx

import "fmt"

// Decoder 请求/响应帧解码器
type Decoder struct {
	checksum Dialect
	regs     *RegisterMap
}

// NewDecoder 创建解码器；dialect 为 nil 时使用 SumComplement，regs 可为 nil
func NewDecoder(dialect Dialect, regs *RegisterMap) *Decoder {
	if dialect == nil {
		dialect = SumComplement{}
	}
	return &Decoder{checksum: dialect, regs: regs}
}

var defaultDecoder = NewDecoder(nil, nil)

// DecodeRequest 使用默认方言解码请求帧
func DecodeRequest(b []byte) (*RequestFrame, error) {
	return defaultDecoder.DecodeRequest(b)
}

// DecodeResponse 使用默认方言解码响应帧；prior 为 nil 时结论为 Undecidable
func DecodeResponse(b []byte, prior *CommandContext) (*ResponseFrame, error) {
	return defaultDecoder.DecodeResponse(b, prior)
}

func checkShape(b []byte, want int) error {
	if len(b) < want {
		return fmt.Errorf("%w: need %d bytes, got %d", ErrShortBuffer, want, len(b))
	}
	if len(b) > want {
		return fmt.Errorf("%w: %d", ErrBadLength, len(b))
	}
	if b[0] != Marker {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidHeader, b[0])
	}
	return nil
}

// DecodeRequest 解码 4 字节请求帧
// CMD1: [7:4]=块长-1 [3:2]=器件地址 [1:0]=操作；CMD2: 7位寄存器地址
func (d *Decoder) DecodeRequest(b []byte) (*RequestFrame, error) {
	if err := checkShape(b, RequestLen); err != nil {
		return nil, err
	}
	cmd1, cmd2, rx := b[1], b[2], b[3]
	expected := d.checksum.Checksum(b[1:3])
	req := &RequestFrame{
		Cmd1:             cmd1,
		Cmd2:             cmd2,
		Address:          cmd2 & 0x7F,
		Operation:        Operation(cmd1 & 0x03),
		DeviceAddress:    (cmd1 >> 2) & 0x03,
		BlockCount:       int(cmd1>>4) + 1,
		ChecksumExpected: expected,
		ChecksumReceived: rx,
		Verdict:          verdictOf(expected, rx),
	}
	if d.regs != nil {
		req.Register = d.regs.Name(req.Address)
	}
	return req, nil
}

// DecodeResponse 解码 6 字节响应帧
// 响应校验覆盖发起请求的 cmd1/cmd2 与 4 个数据字节
func (d *Decoder) DecodeResponse(b []byte, prior *CommandContext) (*ResponseFrame, error) {
	if err := checkShape(b, ResponseLen); err != nil {
		return nil, err
	}
	resp := &ResponseFrame{ChecksumReceived: b[5]}
	copy(resp.Data[:], b[1:5])
	resp.Value = dataValue(resp.Data)

	if prior == nil {
		resp.Verdict = VerdictUndecidable
		return resp, nil
	}
	cmd := *prior
	payload := [6]byte{cmd.Cmd1, cmd.Cmd2, b[1], b[2], b[3], b[4]}
	expected := d.checksum.Checksum(payload[:])
	resp.Command = &cmd
	resp.ChecksumExpected = &expected
	resp.Verdict = verdictOf(expected, resp.ChecksumReceived)
	return resp, nil
}
