package v93xx

import (
	"fmt"
	"strings"
)

// checksumBase 数据手册规定的加数
const checksumBase byte = 0x33

// ComputeChecksum 计算 V93xx UART 校验和
// CKSUM = 0x33 + ~(sum(bytes) & 0xFF)，保留低8位；空输入时 sum=0
func ComputeChecksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return checksumBase + ^sum
}

// Validate 比较期望值与接收值
func Validate(expected, received byte) bool {
	return expected == received
}

// BuildChecksummed 为 payload 追加校验和（不含 marker）
func BuildChecksummed(payload []byte) []byte {
	out := make([]byte, len(payload)+1)
	copy(out, payload)
	out[len(payload)] = ComputeChecksum(payload)
	return out
}

// Dialect 校验算法策略，按帧方言选择
type Dialect interface {
	Name() string
	Checksum(b []byte) byte
}

// SumComplement 累加取反加 0x33（主方言）
type SumComplement struct{}

func (SumComplement) Name() string           { return DialectV93xx }
func (SumComplement) Checksum(b []byte) byte { return ComputeChecksum(b) }

// XORParity 逐字节异或（诊断工具中的“奇校验和”）
type XORParity struct{}

func (XORParity) Name() string { return DialectRegFrame }

func (XORParity) Checksum(b []byte) byte {
	var x byte
	for _, v := range b {
		x ^= v
	}
	return x
}

// 方言名称
const (
	DialectV93xx    = "v93xx"
	DialectRegFrame = "regframe"
)

// DialectByName 按名称返回校验策略
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DialectV93xx, "sum":
		return SumComplement{}, nil
	case DialectRegFrame, "xor":
		return XORParity{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}
