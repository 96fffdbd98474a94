package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/v93xx-probe/internal/health"
	"github.com/taoyao-code/v93xx-probe/internal/sink"
	redisstorage "github.com/taoyao-code/v93xx-probe/internal/storage/redis"
)

// NewHealthAggregator 按已初始化的组件组装检查器
func NewHealthAggregator(pool *pgxpool.Pool, rdb *redisstorage.Client, sinks *sink.Fanout) *health.Aggregator {
	agg := health.NewAggregator(health.NewSinkChecker(sinks))
	if pool != nil {
		agg.AddChecker(health.NewDatabaseChecker(pool))
	}
	if rdb != nil {
		agg.AddChecker(health.NewRedisChecker(rdb))
	}
	return agg
}
