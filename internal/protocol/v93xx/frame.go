package v93xx

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// Marker 帧起始标记
const Marker byte = 0x7D

// 固定帧长
const (
	RequestLen  = 4 // marker + cmd1 + cmd2 + cksum
	ResponseLen = 6 // marker + data[4] + cksum
)

// FrameKind 候选帧/记录类型
type FrameKind uint8

const (
	KindNoise    FrameKind = iota // 无法归属任何帧的字节
	KindRequest                   // 请求帧（4字节）
	KindResponse                  // 响应帧（6字节）
	KindRegister                  // XOR 方言寄存器帧（5字节）
	KindDropped                   // 已切分但解码失败的帧
)

func (k FrameKind) String() string {
	switch k {
	case KindNoise:
		return "noise"
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindRegister:
		return "register"
	case KindDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// MarshalText 便于 JSON/日志输出
func (k FrameKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Operation CMD1 低2位操作选择
type Operation uint8

const (
	OpBroadcast Operation = 0
	OpRead      Operation = 1
	OpWrite     Operation = 2
	OpBlock     Operation = 3
)

func (o Operation) String() string {
	switch o & 0x03 {
	case OpBroadcast:
		return "BROADCAST"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	default:
		return "BLOCK"
	}
}

func (o Operation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Verdict 单帧校验结论
type Verdict uint8

const (
	VerdictValid Verdict = iota
	VerdictMismatch
	VerdictUndecidable
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictMismatch:
		return "mismatch"
	case VerdictUndecidable:
		return "undecidable"
	default:
		return "unknown"
	}
}

func (v Verdict) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// verdictOf 由期望值/接收值得出结论
func verdictOf(expected, received byte) Verdict {
	if Validate(expected, received) {
		return VerdictValid
	}
	return VerdictMismatch
}

// CommandContext 请求帧命令字节，响应校验需要
type CommandContext struct {
	Cmd1 byte
	Cmd2 byte
}

// RequestFrame 请求帧：marker, cmd1, cmd2, checksum
type RequestFrame struct {
	Cmd1             byte      `json:"cmd1"`
	Cmd2             byte      `json:"cmd2"`
	Address          uint8     `json:"address"`
	Register         string    `json:"register,omitempty"`
	Operation        Operation `json:"operation"`
	DeviceAddress    uint8     `json:"device_address"`
	BlockCount       int       `json:"block_count"`
	ChecksumExpected byte      `json:"checksum_expected"`
	ChecksumReceived byte      `json:"checksum_received"`
	Verdict          Verdict   `json:"verdict"`
}

// Context 返回供关联器保存的命令字节
func (r *RequestFrame) Context() CommandContext {
	return CommandContext{Cmd1: r.Cmd1, Cmd2: r.Cmd2}
}

// ResponseFrame 响应帧：marker, data[4], checksum
// 无先前请求时 ChecksumExpected 为 nil，Verdict 为 Undecidable
type ResponseFrame struct {
	Data             [4]byte         `json:"-"`
	Value            uint32          `json:"value"`
	ChecksumExpected *byte           `json:"checksum_expected,omitempty"`
	ChecksumReceived byte            `json:"checksum_received"`
	Command          *CommandContext `json:"command,omitempty"`
	Verdict          Verdict         `json:"verdict"`
}

// dataValue 小端32位
func dataValue(d [4]byte) uint32 { return binary.LittleEndian.Uint32(d[:]) }

// HexBytes 以 "7D 04 02 2C" 形式序列化的原始字节
type HexBytes []byte

func (h HexBytes) String() string {
	if len(h) == 0 {
		return ""
	}
	s := strings.ToUpper(hex.EncodeToString(h))
	var b strings.Builder
	b.Grow(len(s) + len(h))
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+2])
	}
	return b.String()
}

func (h HexBytes) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// ParseHex 解析十六进制文本，允许空白、逗号与 0x 前缀
func ParseHex(s string) ([]byte, error) {
	r := strings.NewReplacer("0x", "", "0X", "", ",", " ", "\n", " ", "\r", " ", "\t", " ")
	fields := strings.Fields(r.Replace(s))
	var sb strings.Builder
	for _, f := range fields {
		if len(f)%2 == 1 {
			f = "0" + f
		}
		sb.WriteString(f)
	}
	return hex.DecodeString(sb.String())
}
