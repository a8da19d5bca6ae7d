package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/zulandar/boardsync/internal/config"
	"github.com/zulandar/boardsync/internal/models"
)

func TestMySQLDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "discrete fields",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, Name: "boards", User: "root"},
			want: "root@tcp(127.0.0.1:3306)/boards?parseTime=true",
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{Host: "db.internal", Port: 3307, Name: "boards", User: "bsync", Password: "pw"},
			want: "bsync:pw@tcp(db.internal:3307)/boards?parseTime=true",
		},
		{
			name: "explicit dsn wins",
			cfg:  config.DatabaseConfig{DSN: "u@tcp(x:1)/y", Host: "ignored", Port: 1},
			want: "u@tcp(x:1)/y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MySQLDSN(tt.cfg); got != tt.want {
				t.Errorf("MySQLDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := SQLiteDSN("boards.db"); got != "boards.db?"+sqlitePragmas {
		t.Errorf("SQLiteDSN = %q", got)
	}
	if got := SQLiteDSN("file:x.db?mode=rwc"); got != "file:x.db?mode=rwc&"+sqlitePragmas {
		t.Errorf("SQLiteDSN with query = %q", got)
	}
	if !strings.Contains(sqlitePragmas, "_txlock=immediate") {
		t.Error("sqlite pragmas must take the write lock at BEGIN")
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), `unsupported driver "oracle"`) {
		t.Errorf("error = %q", err.Error())
	}
}

func TestOpen_InMemorySQLite(t *testing.T) {
	gormDB, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { Close(gormDB) })

	for _, m := range AllModels() {
		if !gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T was not migrated", m)
		}
	}

	p := models.Project{Name: "alpha"}
	if err := gormDB.Create(&p).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	var count int64
	gormDB.Model(&models.Project{}).Count(&count)
	if count != 1 {
		t.Errorf("project count = %d, want 1", count)
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 4 {
		t.Errorf("len(AllModels()) = %d, want 4", got)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", fmt.Errorf("update: %w", driver.ErrBadConn), true},
		{"deadline", context.DeadlineExceeded, true},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait", fmt.Errorf("tx: %w", &mysql.MySQLError{Number: 1205}), true},
		{"mysql duplicate key", &mysql.MySQLError{Number: 1062}, false},
		{"mysql invalid conn", mysql.ErrInvalidConn, true},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", fmt.Errorf("x: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
