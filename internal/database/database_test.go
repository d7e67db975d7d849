package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(&Config{Path: filepath.Join(t.TempDir(), "fleet.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/data")
	if cfg.Path != "/data/camfleet.db" {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.MaxOpenConns == 0 || cfg.MaxIdleConns == 0 {
		t.Error("pool limits should have defaults")
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "fleet.db")
	db, err := Open(&Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if err := db.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestHealthAfterClose(t *testing.T) {
	db, err := Open(&Config{Path: filepath.Join(t.TempDir(), "fleet.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	if err := db.Health(context.Background()); err == nil {
		t.Error("Health should fail on a closed database")
	}
}

func TestTransactionCommitAndRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('a', '1')`)
		return err
	})
	if err != nil {
		t.Fatalf("commit transaction: %v", err)
	}

	boom := errors.New("boom")
	err = db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('b', '2')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want 1 (rollback should have discarded 'b')", count)
	}
}
