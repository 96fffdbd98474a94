package v93xx

import "errors"

var (
	// ErrInvalidHeader 首字节不是 marker，切分错位或上游损坏
	ErrInvalidHeader = errors.New("invalid header")
	// ErrShortBuffer 可用字节少于推断帧长，仅出现在流末尾
	ErrShortBuffer = errors.New("short buffer")
	// ErrBadLength 长度既不是4也不是6
	ErrBadLength = errors.New("bad frame length")
	// ErrChecksumMismatch 解码成功但校验和不一致，由策略决定严重程度
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUndecidableContext 响应之前没有可关联的请求
	ErrUndecidableContext = errors.New("undecidable: no prior request")

	ErrUnknownMode    = errors.New("unknown enforcement mode")
	ErrUnknownDialect = errors.New("unknown frame dialect")
)
