package server

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/http/handler"
	"gorm.io/gorm"
)

// PostgresProbe pings the pgx pool.
func PostgresProbe(pool *pgxpool.Pool) handler.Probe {
	return handler.Probe{Name: "postgres", Check: pool.Ping}
}

// DatabaseProbe pings the connection pool behind db. Used when no pgx pool exists.
func DatabaseProbe(db *gorm.DB) handler.Probe {
	return handler.Probe{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

// RedisProbe pings Redis.
func RedisProbe(rdb redis.UniversalClient) handler.Probe {
	return handler.Probe{
		Name: "redis",
		Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
}

// NATSProbe checks that the connection is established.
func NATSProbe(nc *nats.Conn) handler.Probe {
	return handler.Probe{
		Name: "nats",
		Check: func(context.Context) error {
			if status := nc.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats connection is %s", status)
			}
			return nil
		},
	}
}
