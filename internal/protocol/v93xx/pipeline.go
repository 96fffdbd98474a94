package v93xx

import (
	"encoding/json"
	"fmt"
)

// Record 每个候选帧对应一条记录，顺序与字节流一致
type Record struct {
	Seq      uint64         `json:"seq"`
	Offset   int64          `json:"offset"`
	Kind     FrameKind      `json:"kind"`
	Raw      HexBytes       `json:"raw"`
	Request  *RequestFrame  `json:"request,omitempty"`
	Response *ResponseFrame `json:"response,omitempty"`
	Register *RegisterFrame `json:"register_frame,omitempty"`
	Expected *byte          `json:"expected,omitempty"`
	Received *byte          `json:"received,omitempty"`
	Verdict  Verdict        `json:"-"`
	Outcome  Outcome        `json:"-"`
	Err      error          `json:"-"`
}

// Checked 是否为经过校验的帧记录（噪声与丢弃帧没有结论）
func (r *Record) Checked() bool {
	switch r.Kind {
	case KindRequest, KindResponse, KindRegister:
		return true
	default:
		return false
	}
}

// Fatal Strict 模式下的校验失败
func (r *Record) Fatal() bool { return r.Checked() && r.Outcome.Fatal() }

// MarshalJSON 噪声/丢弃记录不输出 verdict 与 outcome
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	out := struct {
		alias
		Verdict string `json:"verdict,omitempty"`
		Outcome string `json:"outcome,omitempty"`
		Error   string `json:"error,omitempty"`
	}{alias: alias(r)}
	if r.Checked() {
		out.Verdict = r.Verdict.String()
		out.Outcome = r.Outcome.String()
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Stats 单条流的累计统计
type Stats struct {
	Bytes       int64 `json:"bytes"` // 已接收字节，含中止后未判定的部分
	Requests    int   `json:"requests"`
	Responses   int   `json:"responses"`
	Registers   int   `json:"registers"`
	NoiseBytes  int   `json:"noise_bytes"`
	Dropped     int   `json:"dropped"`
	Valid       int   `json:"valid"`
	Mismatch    int   `json:"mismatch"`
	Undecidable int   `json:"undecidable"`
	Errors      int   `json:"errors"`
	Warnings    int   `json:"warnings"`
}

func (s *Stats) tally(r *Record) {
	switch r.Kind {
	case KindNoise:
		s.NoiseBytes += len(r.Raw)
		return
	case KindDropped:
		s.Dropped++
		return
	case KindRequest:
		s.Requests++
	case KindResponse:
		s.Responses++
	case KindRegister:
		s.Registers++
	}
	switch r.Verdict {
	case VerdictValid:
		s.Valid++
	case VerdictMismatch:
		s.Mismatch++
	case VerdictUndecidable:
		s.Undecidable++
	}
	switch r.Outcome {
	case OutcomeError:
		s.Errors++
	case OutcomeWarnContinue:
		s.Warnings++
	}
}

// Options 流分析参数
type Options struct {
	Mode          Mode
	Dialect       string // v93xx | regframe
	LookaheadFrom int    // LookaheadInner | LookaheadCapture
	EmitNoise     bool
	Registers     *RegisterMap
}

// Analyzer 单条字节流的分析器；非并发安全，一条流一个实例
type Analyzer interface {
	Feed(p []byte) []Record
	Flush() []Record
	Reset()
	Stats() Stats
	Failed() bool
	Mode() Mode
}

// NewAnalyzer 按方言创建分析器
func NewAnalyzer(opts Options) (Analyzer, error) {
	d, err := DialectByName(opts.Dialect)
	if err != nil {
		return nil, err
	}
	if d.Name() == DialectRegFrame {
		return NewRegFramePipeline(opts), nil
	}
	return NewPipeline(opts), nil
}

// Pipeline 切分 -> 解码 -> 关联 -> 策略
type Pipeline struct {
	seg       *Segmenter
	dec       *Decoder
	corr      Correlator
	policy    Policy
	emitNoise bool
	held      []Candidate // 致命记录之后暂存、尚未判定的候选帧
	seq       uint64
	failed    bool
	stats     Stats
}

// NewPipeline 创建 V93xx UART 流水线
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{
		seg:       NewSegmenter(opts.LookaheadFrom),
		dec:       NewDecoder(SumComplement{}, opts.Registers),
		policy:    Policy{Mode: opts.Mode},
		emitNoise: opts.EmitNoise,
	}
}

// Feed 追加字节，返回已确定的记录。
// 遇到致命记录即停在该记录：其后的候选帧暂存，不计入统计也不更新关联状态，
// 调用方继续 Feed/Flush 时才接着判定。
func (p *Pipeline) Feed(b []byte) []Record {
	p.stats.Bytes += int64(len(b))
	p.held = append(p.held, p.seg.Feed(b)...)
	return p.process()
}

// Flush 流结束：残余字节按噪声处理
func (p *Pipeline) Flush() []Record {
	p.held = append(p.held, p.seg.Flush()...)
	return p.process()
}

// Reset 开始新的流分析：清空切分缓冲、关联状态与统计
func (p *Pipeline) Reset() {
	p.seg.Reset()
	p.corr.Reset()
	p.held = nil
	p.seq = 0
	p.failed = false
	p.stats = Stats{}
}

func (p *Pipeline) Stats() Stats  { return p.stats }
func (p *Pipeline) Failed() bool  { return p.failed }
func (p *Pipeline) Mode() Mode    { return p.policy.Mode }
func (p *Pipeline) Pending() int  { return p.seg.Pending() + p.heldBytes() }
func (p *Pipeline) Offset() int64 { return p.seg.Offset() }

func (p *Pipeline) heldBytes() int {
	n := 0
	for _, c := range p.held {
		n += len(c.Bytes)
	}
	return n
}

func (p *Pipeline) process() []Record {
	if len(p.held) == 0 {
		return nil
	}
	out := make([]Record, 0, len(p.held))
	for len(p.held) > 0 {
		rec := p.classify(p.held[0])
		p.held = p.held[1:]
		p.stats.tally(&rec)
		if rec.Kind != KindNoise || p.emitNoise {
			p.seq++
			rec.Seq = p.seq
			out = append(out, rec)
		}
		if rec.Fatal() {
			p.failed = true
			break
		}
	}
	if len(p.held) == 0 {
		p.held = nil
	}
	return out
}

func (p *Pipeline) classify(c Candidate) Record {
	rec := Record{Offset: c.Offset, Kind: c.Kind, Raw: HexBytes(c.Bytes)}
	switch c.Kind {
	case KindRequest:
		req, err := p.dec.DecodeRequest(c.Bytes)
		if err != nil {
			return dropped(rec, err)
		}
		p.corr.Observe(req)
		rec.Request = req
		rec.Expected, rec.Received = bytePtr(req.ChecksumExpected), bytePtr(req.ChecksumReceived)
		p.judge(&rec, req.Verdict)
	case KindResponse:
		resp, err := p.dec.DecodeResponse(c.Bytes, p.corr.Prior())
		if err != nil {
			return dropped(rec, err)
		}
		rec.Response = resp
		rec.Expected, rec.Received = resp.ChecksumExpected, bytePtr(resp.ChecksumReceived)
		p.judge(&rec, resp.Verdict)
	}
	return rec
}

// judge 唯一裁决点：结论 -> 策略结果 -> 错误
func (p *Pipeline) judge(rec *Record, v Verdict) {
	rec.Verdict = v
	rec.Outcome = p.policy.Decide(v)
	switch v {
	case VerdictMismatch:
		rec.Err = mismatchError(*rec.Expected, *rec.Received)
	case VerdictUndecidable:
		rec.Err = ErrUndecidableContext
	}
}

func dropped(rec Record, err error) Record {
	rec.Err = fmt.Errorf("decode %s: %w", rec.Kind, err)
	rec.Kind = KindDropped
	return rec
}

func bytePtr(b byte) *byte { return &b }

// TruncateAtFatal 截断到第一条致命记录（含），供需要中止事务的调用方使用
func TruncateAtFatal(recs []Record) ([]Record, bool) {
	for i := range recs {
		if recs[i].Fatal() {
			return recs[:i+1], true
		}
	}
	return recs, false
}
