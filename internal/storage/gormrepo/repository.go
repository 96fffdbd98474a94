package gormrepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taoyao-code/v93xx-probe/internal/storage/models"
)

// ErrNotFound 会话不存在
var ErrNotFound = errors.New("not found")

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// Repository 会话与帧记录的只读查询。写入走 pg.RecordStore 的 COPY 路径
type Repository struct {
	db *gorm.DB
}

// New 返回一个使用给定 *gorm.DB 的 Repository 实例。
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Open 复用 pgx 连接池打开 GORM
func Open(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
}

// SessionFilter 会话列表条件
type SessionFilter struct {
	Source string
	Halted *bool
	Limit  int
	Offset int
}

// RecordFilter 帧记录查询条件；Verdict 为空时返回全部
type RecordFilter struct {
	Verdict  string
	Kind     string
	AfterSeq int64
	Limit    int
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	default:
		return n
	}
}

func (r *Repository) sessionsQuery(ctx context.Context, f SessionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.CaptureSession{})
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Halted != nil {
		q = q.Where("halted = ?", *f.Halted)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	return q.Order("started_at DESC").Limit(clampLimit(f.Limit))
}

// ListSessions 按开始时间倒序列出会话
func (r *Repository) ListSessions(ctx context.Context, f SessionFilter) ([]models.CaptureSession, error) {
	var out []models.CaptureSession
	if err := r.sessionsQuery(ctx, f).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession 按 ID 查询
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.CaptureSession, error) {
	var s models.CaptureSession
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) recordsQuery(ctx context.Context, sessionID uuid.UUID, f RecordFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.FrameRecord{}).Where("session_id = ?", sessionID)
	if f.Verdict != "" {
		q = q.Where("verdict = ?", f.Verdict)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.AfterSeq > 0 {
		q = q.Where("seq > ?", f.AfterSeq)
	}
	return q.Order("seq ASC").Limit(clampLimit(f.Limit))
}

// ListRecords 按序号列出会话内的帧记录，AfterSeq 用于翻页
func (r *Repository) ListRecords(ctx context.Context, sessionID uuid.UUID, f RecordFilter) ([]models.FrameRecord, error) {
	var out []models.FrameRecord
	if err := r.recordsQuery(ctx, sessionID, f).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
