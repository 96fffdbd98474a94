package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
	"github.com/taoyao-code/v93xx-probe/internal/sink"
)

// DB 写路径所需的最小能力，*pgxpool.Pool 满足
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var recordColumns = []string{
	"session_id", "seq", "stream_offset", "kind", "raw", "verdict", "outcome",
	"expected", "received", "cmd1", "cmd2", "address", "register", "value", "error",
}

// RecordStore 会话与帧记录的写入端，实现 sink.Sink
type RecordStore struct {
	db        DB
	batchSize int
}

// NewRecordStore batchSize<=0 时每次 Write 一次 COPY
func NewRecordStore(db DB, batchSize int) *RecordStore {
	return &RecordStore{db: db, batchSize: batchSize}
}

func (s *RecordStore) Name() string { return "postgres" }

// Begin 插入会话行
func (s *RecordStore) Begin(ctx context.Context, sess *sink.Session) error {
	const q = `INSERT INTO capture_sessions (id, source, remote, mode, dialect, started_at)
               VALUES ($1,$2,$3,$4,$5,$6)
               ON CONFLICT (id) DO NOTHING`
	_, err := s.db.Exec(ctx, q, pgUUID(sess), sess.Source, sess.Remote, sess.Mode.String(), sess.Dialect, sess.StartedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Write 以 COPY 批量写入帧记录
func (s *RecordStore) Write(ctx context.Context, sess *sink.Session, recs []v93xx.Record) error {
	size := s.batchSize
	if size <= 0 || size > len(recs) {
		size = len(recs)
	}
	for start := 0; start < len(recs); start += size {
		end := start + size
		if end > len(recs) {
			end = len(recs)
		}
		rows := make([][]any, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, RecordRow(sess, &recs[i]))
		}
		if _, err := s.db.CopyFrom(ctx, pgx.Identifier{"frame_records"}, recordColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy frame_records: %w", err)
		}
	}
	return nil
}

// End 写入会话结束时间、中止标记与统计
func (s *RecordStore) End(ctx context.Context, sess *sink.Session) error {
	const q = `UPDATE capture_sessions SET
                 ended_at=$2, halted=$3, close_reason=$4, bytes=$5,
                 requests=$6, responses=$7, registers=$8, noise_bytes=$9, dropped=$10,
                 valid=$11, mismatch=$12, undecidable=$13, errors=$14, warnings=$15
               WHERE id=$1`
	st := sess.Stats
	_, err := s.db.Exec(ctx, q, pgUUID(sess), sess.EndedAt, sess.Halted, sess.CloseReason, st.Bytes,
		st.Requests, st.Responses, st.Registers, st.NoiseBytes, st.Dropped,
		st.Valid, st.Mismatch, st.Undecidable, st.Errors, st.Warnings)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// RecordRow 按 recordColumns 的顺序展开一条记录；无意义的列为 NULL
func RecordRow(sess *sink.Session, r *v93xx.Record) []any {
	var (
		verdict, outcome, register, errText *string
		expected, received                  *int16
		cmd1, cmd2, address                 *int16
		value                               *int64
	)
	if r.Checked() {
		verdict = strPtr(r.Verdict.String())
		outcome = strPtr(r.Outcome.String())
	}
	if r.Expected != nil {
		expected = i16Ptr(*r.Expected)
	}
	if r.Received != nil {
		received = i16Ptr(*r.Received)
	}
	switch {
	case r.Request != nil:
		cmd1, cmd2, address = i16Ptr(r.Request.Cmd1), i16Ptr(r.Request.Cmd2), i16Ptr(r.Request.Address)
		if r.Request.Register != "" {
			register = strPtr(r.Request.Register)
		}
	case r.Response != nil:
		v := int64(r.Response.Value)
		value = &v
		if c := r.Response.Command; c != nil {
			cmd1, cmd2, address = i16Ptr(c.Cmd1), i16Ptr(c.Cmd2), i16Ptr(c.Cmd2&0x7F)
		}
	case r.Register != nil:
		address, cmd1 = i16Ptr(r.Register.Address), i16Ptr(r.Register.Command)
		v := int64(r.Register.Value)
		value = &v
	}
	if r.Err != nil {
		errText = strPtr(r.Err.Error())
	}
	raw := []byte(r.Raw)
	if raw == nil {
		raw = []byte{}
	}
	return []any{
		pgUUID(sess), int64(r.Seq), r.Offset, r.Kind.String(), raw, verdict, outcome,
		expected, received, cmd1, cmd2, address, register, value, errText,
	}
}

func pgUUID(sess *sink.Session) pgtype.UUID {
	return pgtype.UUID{Bytes: sess.ID, Valid: true}
}

func strPtr(s string) *string { return &s }

func i16Ptr(b byte) *int16 {
	v := int16(b)
	return &v
}

var _ sink.Sink = (*RecordStore)(nil)
