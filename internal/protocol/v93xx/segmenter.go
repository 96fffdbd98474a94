package v93xx

// 切分窗口：从 marker 起向后查找下一个 marker，距离上限（不含）
const lookaheadWindow = 10

// 下一个 marker 的最小查找距离
const (
	// LookaheadInner 从距离1开始，帧内出现 marker 即触发重同步
	LookaheadInner = 1
	// LookaheadCapture 从距离4开始，与抓包分析脚本逐字节一致
	LookaheadCapture = 4
)

// Candidate 切分结果：请求/响应候选帧或单个噪声字节
type Candidate struct {
	Kind   FrameKind
	Bytes  []byte
	Offset int64 // 在整条流中的起始偏移
}

// scanState 切分状态机
type scanState uint8

const (
	stateScanning  scanState = iota // 寻找 marker
	stateCandidate                  // 已定位 marker，等待按间距分类
	stateResync                     // 当前 marker 视为噪声，前移1字节
)

func (s scanState) String() string {
	switch s {
	case stateScanning:
		return "scanning"
	case stateCandidate:
		return "candidate"
	case stateResync:
		return "resync"
	default:
		return "unknown"
	}
}

// Segmenter 基于间距前瞻的流式切分器
// 无长度字段：以到下一个 marker 的距离推断帧长（4=请求，6=响应），
// 否则视当前 marker 为噪声并前移1字节重试。非并发安全，每条流一个实例。
type Segmenter struct {
	buf    []byte
	base   int64 // buf[0] 在流中的偏移
	state  scanState
	from   int
	out    []Candidate
	maxBuf int
}

// NewSegmenter 创建切分器；lookaheadFrom 取 LookaheadInner 或 LookaheadCapture
func NewSegmenter(lookaheadFrom int) *Segmenter {
	if lookaheadFrom != LookaheadCapture {
		lookaheadFrom = LookaheadInner
	}
	return &Segmenter{from: lookaheadFrom, maxBuf: 4096}
}

// Offset 返回已消费的字节数
func (s *Segmenter) Offset() int64 { return s.base }

// Pending 返回尚未判定的缓冲字节数
func (s *Segmenter) Pending() int { return len(s.buf) }

// Reset 清空缓冲，偏移归零
func (s *Segmenter) Reset() {
	s.buf = s.buf[:0]
	s.base = 0
	s.state = stateScanning
	s.out = nil
}

// Feed 追加字节并尽可能输出已确定的候选；不足一个窗口时等待更多数据
func (s *Segmenter) Feed(p []byte) []Candidate {
	if len(p) > 0 {
		s.buf = append(s.buf, p...)
	}
	s.run(false)
	return s.drain()
}

// Flush 按流结束语义处理剩余字节（不足帧长的部分成为噪声）
func (s *Segmenter) Flush() []Candidate {
	s.run(true)
	out := s.drain()
	s.buf = s.buf[:0]
	s.state = stateScanning
	return out
}

// Segment 一次性切分完整缓冲
func Segment(b []byte, lookaheadFrom int) []Candidate {
	s := NewSegmenter(lookaheadFrom)
	out := s.Feed(b)
	return append(out, s.Flush()...)
}

func (s *Segmenter) drain() []Candidate {
	out := s.out
	s.out = nil
	return out
}

func (s *Segmenter) run(eof bool) {
	for {
		switch s.state {
		case stateScanning:
			if len(s.buf) == 0 {
				return
			}
			if s.buf[0] != Marker {
				s.emit(KindNoise, 1)
				continue
			}
			s.state = stateCandidate

		case stateCandidate:
			kind, n, decided := s.classify(eof)
			if !decided {
				s.compact()
				return
			}
			if kind == KindNoise {
				s.state = stateResync
				continue
			}
			s.emit(kind, n)
			s.state = stateScanning

		case stateResync:
			s.emit(KindNoise, 1)
			s.state = stateScanning
		}
	}
}

// classify 在 buf[0] 为 marker 时按间距判定；decided=false 表示需要更多字节
func (s *Segmenter) classify(eof bool) (FrameKind, int, bool) {
	avail := len(s.buf)
	if avail < RequestLen {
		if !eof {
			return 0, 0, false
		}
		return KindNoise, 1, true
	}
	end := lookaheadWindow
	if avail < end {
		end = avail
	}
	for j := s.from; j < end; j++ {
		if s.buf[j] != Marker {
			continue
		}
		switch j {
		case RequestLen:
			return KindRequest, RequestLen, true
		case ResponseLen:
			return KindResponse, ResponseLen, true
		default:
			return KindNoise, 1, true
		}
	}
	// 窗口内没有下一个 marker
	if avail < lookaheadWindow && !eof {
		return 0, 0, false
	}
	if avail >= ResponseLen {
		return KindResponse, ResponseLen, true
	}
	return KindRequest, RequestLen, true
}

func (s *Segmenter) emit(kind FrameKind, n int) {
	b := make([]byte, n)
	copy(b, s.buf[:n])
	s.out = append(s.out, Candidate{Kind: kind, Bytes: b, Offset: s.base})
	s.buf = s.buf[n:]
	s.base += int64(n)
}

// compact 回收已消费的底层数组，避免长流下缓冲只增不减
func (s *Segmenter) compact() {
	if cap(s.buf) > s.maxBuf && len(s.buf) < s.maxBuf/2 {
		nb := make([]byte, len(s.buf), s.maxBuf/2)
		copy(nb, s.buf)
		s.buf = nb
	}
}
