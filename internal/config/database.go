package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/kvgrid/internal/grid"
	"github.com/oakwood-commons/kvgrid/internal/store"
)

// BuildDriverAndDSN produces a driver name and DSN string for supported
// database types. An explicit DSN is passed through untouched.
func BuildDriverAndDSN(db DatabaseConfig) (driver string, dsn string, err error) {
	driver = store.NormalizeDriver(db.Type)
	if db.DSN != "" {
		return driver, db.DSN, nil
	}

	switch driver {
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(db.Username, db.Password),
			Host:     hostPort(db.Host, db.Port, 5432),
			Path:     "/" + db.DatabaseName,
			RawQuery: "sslmode=disable",
		}
		dsn = u.String()
	case "mysql":
		dsn = fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&clientFoundRows=true",
			db.Username, db.Password, hostPort(db.Host, db.Port, 3306), db.DatabaseName)
	case "sqlite":
		if db.DatabaseName == "" {
			return "", "", fmt.Errorf("sqlite needs a file path in database_name")
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", db.DatabaseName)
	case "sqlserver":
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(db.Username, db.Password),
			Host:     hostPort(db.Host, db.Port, 1433),
			RawQuery: url.Values{"database": {db.DatabaseName}}.Encode(),
		}
		dsn = u.String()
	default:
		err = fmt.Errorf("unsupported database type: %s", db.Type)
	}
	return driver, dsn, err
}

func hostPort(host string, port, fallback int) string {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = fallback
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// StoreConfig converts the database section into store options.
func (c Config) StoreConfig(log logr.Logger) (store.Config, error) {
	driver, dsn, err := BuildDriverAndDSN(c.Database)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{
		Driver:         driver,
		DSN:            dsn,
		ConnectTimeout: c.Database.ConnectTimeout.Std(),
		ReadTimeout:    c.RequestTimeout(),
		MaxOpenConns:   c.Database.MaxOpenConns,
		Logger:         log,
	}, nil
}

// RequestTimeout bounds every data source call made by the interactive grid.
func (c Config) RequestTimeout() time.Duration {
	if d := c.Database.RequestTimeout.Std(); d > 0 {
		return d
	}
	return 15 * time.Second
}

// GridOptions converts the grid section into grid.Options for tableID.
// The config is expected to have passed Validate.
func (c Config) GridOptions(tableID string, log logr.Logger) grid.Options {
	opts := grid.DefaultOptions(tableID)
	g := c.Grid
	opts.PageSize = g.PageSize
	opts.RowHeight = g.RowHeight
	if g.Overscan != nil {
		opts.Overscan = *g.Overscan
	}
	opts.Trigger = grid.TriggerConfig{LoadThreshold: g.LoadThreshold, RearmThreshold: g.RearmThreshold}
	opts.SearchDebounce = g.SearchDebounce.Std()
	opts.IndicatorLinger = g.IndicatorLinger.Std()
	opts.ReconcileMode, _ = grid.ParseReconcileMode(g.ReconcileMode)
	opts.PlaceholderEdits, _ = grid.ParsePlaceholderPolicy(g.PlaceholderEdits)
	opts.Logger = log
	return opts
}
