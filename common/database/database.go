package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type Driver string

const (
	DriverClickHouse Driver = "clickhouse"
	DriverPostgres   Driver = "postgres"
	DriverSQLite     Driver = "sqlite"
)

type Options struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Username        string
	Password        string
	Database        string
}

type Database struct {
	db     *sql.DB
	driver Driver
	logger *zap.Logger
}

func New(ctx context.Context, opts Options, logger *zap.Logger) (*Database, error) {
	var (
		db  *sql.DB
		err error
	)

	switch opts.Driver {
	case DriverClickHouse, "":
		opts.Driver = DriverClickHouse
		db = openClickHouse(opts)
	case DriverPostgres:
		db, err = sql.Open("pgx", opts.DSN)
	case DriverSQLite:
		// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
		db, err = sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", opts.DSN))
		if err == nil {
			opts.MaxOpenConns = 1
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", opts.Driver, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Driver, err)
	}

	logger.Info("database connection established", zap.String("driver", string(opts.Driver)))

	return &Database{
		db:     db,
		driver: opts.Driver,
		logger: logger,
	}, nil
}

func openClickHouse(opts Options) *sql.DB {
	hostAndParams := strings.Split(opts.DSN, "?")
	host := hostAndParams[0]

	return clickhouse.OpenDB(&clickhouse.Options{
		Protocol: clickhouse.Native,
		Addr:     []string{host},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: time.Second * 30,
	})
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) DB() *sql.DB {
	return db.db
}

func (db *Database) Driver() Driver {
	return db.driver
}
