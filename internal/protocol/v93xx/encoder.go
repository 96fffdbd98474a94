package v93xx

import "encoding/binary"

// CMD1 组装：块长-1 在高4位，器件地址在 [3:2]，操作在 [1:0]
func BuildCmd1(op Operation, deviceAddr uint8, blockCount int) byte {
	if blockCount < 1 {
		blockCount = 1
	}
	return byte((blockCount-1)&0x0F)<<4 | (deviceAddr&0x03)<<2 | byte(op&0x03)
}

// EncodeRequest 构造 4 字节请求帧
func EncodeRequest(cmd1, cmd2 byte) []byte {
	return append([]byte{Marker}, BuildChecksummed([]byte{cmd1, cmd2})...)
}

// EncodeResponse 构造 6 字节响应帧，校验和按发起请求的命令字节计算
func EncodeResponse(cmd CommandContext, value uint32) []byte {
	var data [4]byte
	binary.LittleEndian.PutUint32(data[:], value)
	payload := []byte{cmd.Cmd1, cmd.Cmd2, data[0], data[1], data[2], data[3]}
	out := make([]byte, 0, ResponseLen)
	out = append(out, Marker)
	out = append(out, data[:]...)
	return append(out, ComputeChecksum(payload))
}

// EncodeRead 构造单寄存器读请求
func EncodeRead(deviceAddr, address uint8) []byte {
	return EncodeRequest(BuildCmd1(OpRead, deviceAddr, 1), address&0x7F)
}
