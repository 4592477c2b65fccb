// Package journal 把成交事件写入 PostgreSQL，用于离线复盘。
// 以事件 ID 为主键幂等写入，投递器重试导致的重复事件会被忽略。
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"meanrev-paper-engine/internal/core/model"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS trade_events (
	id          UUID PRIMARY KEY,
	position_id TEXT NOT NULL,
	action      VARCHAR(16) NOT NULL,
	market      VARCHAR(32) NOT NULL,
	side        VARCHAR(8) NOT NULL,
	size        NUMERIC(30, 12) NOT NULL,
	price       NUMERIC(30, 12) NOT NULL,
	status      VARCHAR(16) NOT NULL,
	pnl_usd     NUMERIC(30, 12) NOT NULL,
	fees_usd    NUMERIC(30, 12) NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	ts_ns       BIGINT NOT NULL,
	event_time  TIMESTAMPTZ NOT NULL,
	source      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS trade_events_position_idx ON trade_events (position_id);`

const insertSQL = `
INSERT INTO trade_events
	(id, position_id, action, market, side, size, price, status, pnl_usd, fees_usd, reason, ts_ns, event_time, source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO NOTHING`

// execer 写入所需的最小数据库接口（*pgxpool.Pool 满足）
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Journal PostgreSQL 事件日志
type Journal struct {
	db      execer
	pool    *pgxpool.Pool
	timeout time.Duration
}

// New 基于已有连接创建事件日志
// 参数 timeout: 单次写入超时，≤0 时为 5 秒
func New(db execer, timeout time.Duration) *Journal {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Journal{db: db, timeout: timeout}
}

// Open 连接数据库并建表
func Open(ctx context.Context, dsn string, timeout time.Duration) (*Journal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("journal: DSN 为空")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("数据库不可用: %w", err)
	}
	j := New(pool, timeout)
	j.pool = pool
	if err := j.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// Migrate 创建事件表（幂等）
func (j *Journal) Migrate(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("创建 trade_events 表失败: %w", err)
	}
	return nil
}

// Name 下游名称
func (j *Journal) Name() string { return "journal" }

// Deliver 写入一条成交事件
func (j *Journal) Deliver(ctx context.Context, ev model.TradeEvent) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	_, err := j.db.Exec(ctx, insertSQL,
		ev.ID, ev.PositionID, string(ev.Action), ev.Market, string(ev.Side),
		ev.Size, ev.Price, string(ev.Status), ev.PnLUSD, ev.FeesUSD, ev.Reason,
		ev.TsNs, time.Unix(0, ev.TsNs).UTC(), ev.Source,
	)
	if err != nil {
		return fmt.Errorf("写入事件 %s 失败: %w", ev.ID, err)
	}
	return nil
}

// Close 关闭连接池（仅 Open 创建的连接）
func (j *Journal) Close() {
	if j.pool != nil {
		j.pool.Close()
	}
}
