package database

import (
	"context"
	"embed"
	"fmt"
	"net"
	"net/url"
	"runtime"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

type closeFuncs []func() error

func (c closeFuncs) Close() error {
	var err error
	for _, f := range c {
		if e := f(); e != nil {
			err = e
		}
	}
	return err
}

//go:embed migrations/0*.sql
var embedMigrations embed.FS

// NewDB creates a new connection pool and runs migrations. A DSN that is not
// a URL is treated as a Cloud SQL connection string, where the host field is
// the instance connection name.
func NewDB(ctx context.Context, dsn string, log logrus.FieldLogger) (*pgxpool.Pool, closeFuncs, error) {
	cloudsql := !strings.Contains(dsn, "://")

	if runtime.NumCPU() < 5 {
		if cloudsql {
			dsn += " pool_max_conns=5"
		} else if strings.Contains(dsn, "?") {
			dsn += "&pool_max_conns=5"
		} else {
			dsn += "?pool_max_conns=5"
		}
	}

	cloudsqlHost := ""
	if cloudsql {
		var err error
		cloudsqlHost, err = GetInstanceConnectionNameFromDsn(dsn)
		if err != nil {
			return nil, nil, err
		}
		dsn = withoutHost(dsn)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}

	closers := closeFuncs{}

	if cloudsql {
		dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
		if err != nil {
			return nil, closers, fmt.Errorf("failed to initialize dialer: %w", err)
		}
		closers = append(closers, dialer.Close)
		config.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.Dial(ctx, cloudsqlHost)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, closers, fmt.Errorf("failed to connect: %w", err)
	}
	closers = append(closers, func() error {
		pool.Close()
		return nil
	})

	if err := migrateDatabaseSchema(pool, log); err != nil {
		return nil, closers, err
	}

	return pool, closers, nil
}

// GetInstanceConnectionNameFromDsn returns the host field of a key/value DSN.
func GetInstanceConnectionNameFromDsn(dsn string) (string, error) {
	vals, err := url.ParseQuery(strings.ReplaceAll(dsn, " ", "&"))
	if err != nil {
		return "", err
	}
	host := vals.Get("host")
	if host == "" {
		return "", fmt.Errorf("dsn does not have a host field: %q", dsn)
	}
	return host, nil
}

func withoutHost(dsn string) string {
	fields := strings.Fields(dsn)
	ret := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f, "host=") {
			continue
		}
		ret = append(ret, f)
	}
	return strings.Join(ret, " ")
}

// migrateDatabaseSchema runs database migrations
func migrateDatabaseSchema(pool *pgxpool.Pool, log logrus.FieldLogger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(log)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("closing database migration connection")
		}
	}()

	return goose.Up(db, "migrations")
}
