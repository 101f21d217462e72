package deps

import (
	"context"
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/keithlinneman/pasaeventos-api/internal/probe"
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

// Health keys, also used as the dependency label on probe metrics.
const (
	NameMySQL   = "mysql"
	NameRedis   = "redis"
	NameStorage = "storage"
	NameMail    = "mail"
)

type Config struct {
	MySQL   MySQLConfig
	Redis   RedisConfig
	Storage StorageConfig
	Mail    MailConfig
}

// Clients owns one client per backing service for the life of the process.
type Clients struct {
	DB      *sql.DB
	Cache   *redis.Client
	Storage *Storage
	Mail    *MailVerifier
}

// Open builds every client. None of them dial, so a failure here is a
// configuration problem rather than an unreachable service.
func Open(ctx context.Context, c Config) (*Clients, error) {
	db, err := OpenMySQL(c.MySQL)
	if err != nil {
		return nil, err
	}
	out := &Clients{DB: db, Cache: NewRedis(c.Redis)}

	if out.Storage, err = NewStorage(ctx, c.Storage); err != nil {
		_ = out.Close()
		return nil, xerrors.Wrap(err, "storage client")
	}
	if out.Mail, err = NewMailVerifier(c.Mail); err != nil {
		_ = out.Close()
		return nil, xerrors.Wrap(err, "mail client")
	}
	return out, nil
}

// Probes returns one pinger per dependency. Missing clients still get an
// entry so the health report always carries every key.
func (c *Clients) Probes() map[string]probe.Pinger {
	m := map[string]probe.Pinger{
		NameMySQL:   SQLPinger{DB: c.DB},
		NameRedis:   RedisPinger{},
		NameStorage: c.Storage,
		NameMail:    c.Mail,
	}
	if c.Cache != nil {
		m[NameRedis] = RedisPinger{Client: c.Cache}
	}
	return m
}

func (c *Clients) Close() error {
	var errs []error
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, xerrors.Wrap(err, "close mysql"))
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			errs = append(errs, xerrors.Wrap(err, "close redis"))
		}
	}
	return errors.Join(errs...)
}
