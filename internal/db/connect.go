// Package db opens the relational store and classifies its failures.
package db

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/zulandar/boardsync/internal/config"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlitePragmas are appended to every sqlite DSN. _txlock=immediate takes the
// write lock at BEGIN so a reorder transaction's re-read already sees every
// committed mover.
const sqlitePragmas = "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"

// MySQLDSN builds a MySQL DSN from discrete settings.
func MySQLDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	return mc.FormatDSN()
}

// SQLiteDSN appends the required pragmas to a sqlite path.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}

// Connect opens a GORM connection for the configured driver.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.Driver {
	case "mysql":
		gormDB, err := gorm.Open(gormmysql.Open(MySQLDSN(cfg)), gcfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect mysql %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
		}
		return gormDB, nil
	case "sqlite", "":
		gormDB, err := gorm.Open(sqlite.Open(SQLiteDSN(cfg.DSN)), gcfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect sqlite %s: %w", cfg.DSN, err)
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, fmt.Errorf("db: sqlite handle: %w", err)
		}
		// SQLite has a single writer; one pooled connection also keeps
		// ":memory:" databases alive and shared.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		return gormDB, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// Open is a convenience for tests and tools: Connect followed by AutoMigrate.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormDB, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// Close releases the underlying connection pool.
func Close(gormDB *gorm.DB) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return sqlDB.Close()
}
