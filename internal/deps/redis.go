package deps

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedis builds a client without contacting the server; go-redis dials on
// first command.
func NewRedis(c RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

// RedisPinger probes a Redis server with PING.
type RedisPinger struct {
	Client redis.UniversalClient
}

func (p RedisPinger) Ping(ctx context.Context) error {
	if p.Client == nil {
		return xerrors.New("redis client not configured")
	}
	return p.Client.Ping(ctx).Err()
}
