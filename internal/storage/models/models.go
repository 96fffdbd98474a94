package models

import (
	"time"

	"github.com/google/uuid"
)

// 注意：
// - 保持与 db/migrations/0001_capture_sessions_up.sql 完全对齐
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// CaptureSession 映射 capture_sessions 表
type CaptureSession struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Source      string     `gorm:"column:source;not null" json:"source"`
	Remote      string     `gorm:"column:remote;not null" json:"remote"`
	Mode        string     `gorm:"column:mode;not null" json:"mode"`
	Dialect     string     `gorm:"column:dialect;not null" json:"dialect"`
	StartedAt   time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	EndedAt     *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	Halted      bool       `gorm:"column:halted;not null" json:"halted"`
	CloseReason *string    `gorm:"column:close_reason" json:"close_reason,omitempty"`
	// 统计
	Bytes       int64 `gorm:"column:bytes" json:"bytes"`
	Requests    int   `gorm:"column:requests" json:"requests"`
	Responses   int   `gorm:"column:responses" json:"responses"`
	Registers   int   `gorm:"column:registers" json:"registers"`
	NoiseBytes  int   `gorm:"column:noise_bytes" json:"noise_bytes"`
	Dropped     int   `gorm:"column:dropped" json:"dropped"`
	Valid       int   `gorm:"column:valid" json:"valid"`
	Mismatch    int   `gorm:"column:mismatch" json:"mismatch"`
	Undecidable int   `gorm:"column:undecidable" json:"undecidable"`
	Errors      int   `gorm:"column:errors" json:"errors"`
	Warnings    int   `gorm:"column:warnings" json:"warnings"`
}

func (CaptureSession) TableName() string { return "capture_sessions" }

// FrameRecord 映射 frame_records 表
type FrameRecord struct {
	SessionID    uuid.UUID `gorm:"column:session_id;type:uuid;primaryKey" json:"session_id"`
	Seq          int64     `gorm:"column:seq;primaryKey" json:"seq"`
	StreamOffset int64     `gorm:"column:stream_offset;not null" json:"offset"`
	Kind         string    `gorm:"column:kind;not null" json:"kind"`
	Raw          []byte    `gorm:"column:raw;type:bytea;not null" json:"-"`
	Verdict      *string   `gorm:"column:verdict" json:"verdict,omitempty"`
	Outcome      *string   `gorm:"column:outcome" json:"outcome,omitempty"`
	Expected     *int16    `gorm:"column:expected" json:"expected,omitempty"`
	Received     *int16    `gorm:"column:received" json:"received,omitempty"`
	Cmd1         *int16    `gorm:"column:cmd1" json:"cmd1,omitempty"`
	Cmd2         *int16    `gorm:"column:cmd2" json:"cmd2,omitempty"`
	Address      *int16    `gorm:"column:address" json:"address,omitempty"`
	Register     *string   `gorm:"column:register" json:"register,omitempty"`
	Value        *int64    `gorm:"column:value" json:"value,omitempty"`
	Error        *string   `gorm:"column:error" json:"error,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (FrameRecord) TableName() string { return "frame_records" }
