package v93xx

import "encoding/binary"

// RegisterFrameLen XOR 方言寄存器帧长度：marker, addr, cmd, hi, lo
const RegisterFrameLen = 5

// RegisterFrame 诊断工具使用的 5 字节寄存器帧
// 校验为前4字节逐字节异或，与末字节 lo 比较
type RegisterFrame struct {
	Address          byte    `json:"address"`
	Command          byte    `json:"command"`
	Value            uint16  `json:"value"`
	ChecksumExpected byte    `json:"checksum_expected"`
	ChecksumReceived byte    `json:"checksum_received"`
	Verdict          Verdict `json:"verdict"`
}

// DecodeRegisterFrame 解码 5 字节寄存器帧
func DecodeRegisterFrame(b []byte, d Dialect) (*RegisterFrame, error) {
	if err := checkShape(b, RegisterFrameLen); err != nil {
		return nil, err
	}
	if d == nil {
		d = XORParity{}
	}
	expected := d.Checksum(b[:4])
	return &RegisterFrame{
		Address:          b[1],
		Command:          b[2],
		Value:            binary.BigEndian.Uint16(b[3:5]),
		ChecksumExpected: expected,
		ChecksumReceived: b[4],
		Verdict:          verdictOf(expected, b[4]),
	}, nil
}

// RegFramePipeline 5 字节定长帧流水线
// 头部不是 marker 且缓冲超过一帧时丢弃1字节重同步
type RegFramePipeline struct {
	buf       []byte
	base      int64
	checksum  Dialect
	policy    Policy
	emitNoise bool
	seq       uint64
	failed    bool
	stats     Stats
}

// NewRegFramePipeline 创建 XOR 方言流水线
func NewRegFramePipeline(opts Options) *RegFramePipeline {
	return &RegFramePipeline{
		checksum:  XORParity{},
		policy:    Policy{Mode: opts.Mode},
		emitNoise: opts.EmitNoise,
	}
}

func (p *RegFramePipeline) Feed(b []byte) []Record {
	p.stats.Bytes += int64(len(b))
	p.buf = append(p.buf, b...)
	return p.scan(false)
}

func (p *RegFramePipeline) Flush() []Record {
	return p.scan(true)
}

func (p *RegFramePipeline) Reset() {
	p.buf = p.buf[:0]
	p.base = 0
	p.seq = 0
	p.failed = false
	p.stats = Stats{}
}

func (p *RegFramePipeline) Stats() Stats { return p.stats }
func (p *RegFramePipeline) Failed() bool { return p.failed }
func (p *RegFramePipeline) Mode() Mode   { return p.policy.Mode }

func (p *RegFramePipeline) scan(eof bool) []Record {
	var out []Record
	for len(p.buf) > 0 {
		var rec Record
		switch {
		case len(p.buf) >= RegisterFrameLen && p.buf[0] == Marker:
			rec = p.frame()
		case len(p.buf) > RegisterFrameLen || eof:
			rec = p.take(KindNoise, 1)
		default:
			return out
		}
		p.stats.tally(&rec)
		if rec.Kind != KindNoise || p.emitNoise {
			p.seq++
			rec.Seq = p.seq
			out = append(out, rec)
		}
		// 致命帧之后的字节留在缓冲，下次 Feed/Flush 再处理
		if rec.Fatal() {
			p.failed = true
			return out
		}
	}
	return out
}

func (p *RegFramePipeline) frame() Record {
	rec := p.take(KindRegister, RegisterFrameLen)
	rf, err := DecodeRegisterFrame(rec.Raw, p.checksum)
	if err != nil {
		return dropped(rec, err)
	}
	rec.Register = rf
	rec.Expected, rec.Received = bytePtr(rf.ChecksumExpected), bytePtr(rf.ChecksumReceived)
	rec.Verdict = rf.Verdict
	rec.Outcome = p.policy.Decide(rf.Verdict)
	if rf.Verdict == VerdictMismatch {
		rec.Err = mismatchError(rf.ChecksumExpected, rf.ChecksumReceived)
	}
	return rec
}

func (p *RegFramePipeline) take(kind FrameKind, n int) Record {
	raw := make([]byte, n)
	copy(raw, p.buf[:n])
	rec := Record{Offset: p.base, Kind: kind, Raw: HexBytes(raw)}
	p.buf = p.buf[n:]
	p.base += int64(n)
	return rec
}
