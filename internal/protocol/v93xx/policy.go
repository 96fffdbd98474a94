package v93xx

import (
	"fmt"
	"strings"
)

// Mode 校验和执行策略，会话开始时选定，运行期间不变
type Mode uint8

const (
	// ModeStrict 对应固件的 Clean 模式：不匹配即失败
	ModeStrict Mode = iota
	// ModeLenient 对应固件的 Dirty 模式：不匹配仅告警，数据照常返回
	ModeLenient
)

func (m Mode) String() string {
	if m == ModeLenient {
		return "lenient"
	}
	return "strict"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ParseMode 解析策略名称，兼容 clean/dirty
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "clean":
		return ModeStrict, nil
	case "lenient", "dirty":
		return ModeLenient, nil
	default:
		return ModeStrict, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Outcome 策略裁决结果
type Outcome uint8

const (
	OutcomeContinue     Outcome = iota // 校验通过
	OutcomeError                       // Strict 下不匹配，调用方应中止或重试事务
	OutcomeWarnContinue                // Lenient 下不匹配，告警后继续使用数据
	OutcomeUndecided                   // 无法判定，不致命，但不计入通过
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeError:
		return "error"
	case OutcomeWarnContinue:
		return "warn_continue"
	case OutcomeUndecided:
		return "undecided"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Fatal 仅 Strict 模式下的不匹配为致命
func (o Outcome) Fatal() bool { return o == OutcomeError }

// Policy 执行策略，结论计算之后的唯一裁决点
type Policy struct {
	Mode Mode
}

// Decide 将校验结论映射为裁决结果
func (p Policy) Decide(v Verdict) Outcome {
	switch v {
	case VerdictValid:
		return OutcomeContinue
	case VerdictMismatch:
		if p.Mode == ModeLenient {
			return OutcomeWarnContinue
		}
		return OutcomeError
	default:
		return OutcomeUndecided
	}
}

// Check 以 error 形式返回裁决：Strict 不匹配返回 ErrChecksumMismatch，其余为 nil
func (p Policy) Check(expected, received byte) error {
	if p.Decide(verdictOf(expected, received)).Fatal() {
		return mismatchError(expected, received)
	}
	return nil
}

func mismatchError(expected, received byte) error {
	return fmt.Errorf("%w: expected=0x%02X received=0x%02X", ErrChecksumMismatch, expected, received)
}
