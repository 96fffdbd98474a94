package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	"github.com/taoyao-code/v93xx-probe/internal/sink"
	pgstorage "github.com/taoyao-code/v93xx-probe/internal/storage/pg"
	redisstorage "github.com/taoyao-code/v93xx-probe/internal/storage/redis"
)

// NewSinks 组装记录输出：日志始终开启，PG 与 Redis 按是否初始化决定
func NewSinks(cfg *cfgpkg.Config, pool *pgxpool.Pool, rdb *redisstorage.Client, log *zap.Logger) *sink.Fanout {
	f := sink.NewFanout(log, sink.NewLogSink(log))
	if pool != nil {
		f.Add(pgstorage.NewRecordStore(pool, cfg.Database.BatchSize))
	}
	if rdb != nil {
		f.Add(rdb.RecordStream())
	}
	log.Info("record sinks ready", zap.Int("count", f.Len()))
	return f
}
