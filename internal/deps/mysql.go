package deps

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

const (
	mysqlDialTimeout  = 5 * time.Second
	mysqlMaxOpenConns = 10
	mysqlMaxIdleConns = 2
	mysqlConnLifetime = 30 * time.Minute
)

func mysqlDSN(c MySQLConfig) string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Timeout = mysqlDialTimeout
	return mc.FormatDSN()
}

// OpenMySQL returns a pooled handle. sql.Open validates the DSN only; no
// connection is made until first use.
func OpenMySQL(c MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", mysqlDSN(c))
	if err != nil {
		return nil, xerrors.Wrap(err, "open mysql")
	}
	db.SetMaxOpenConns(mysqlMaxOpenConns)
	db.SetMaxIdleConns(mysqlMaxIdleConns)
	db.SetConnMaxLifetime(mysqlConnLifetime)
	return db, nil
}

// SQLPinger probes a database with a trivial round trip.
type SQLPinger struct {
	DB *sql.DB
}

func (p SQLPinger) Ping(ctx context.Context) error {
	if p.DB == nil {
		return xerrors.New("mysql client not configured")
	}
	var one int
	if err := p.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return err
	}
	return nil
}
