package shared

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func TestNewDatabase(t *testing.T) {
	t.Run("Pragmas On Every Connection", func(t *testing.T) {
		db, err := NewDatabase(filepath.Join(t.TempDir(), "data", "stackr.db"))
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(2)

		ctx := context.Background()
		first, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("failed to get connection: %v", err)
		}
		defer first.Close()
		second, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("failed to get second connection: %v", err)
		}
		defer second.Close()

		tests := []struct {
			pragma string
			want   string
		}{
			{pragma: "foreign_keys", want: "1"},
			{pragma: "busy_timeout", want: "5000"},
			{pragma: "journal_mode", want: "wal"},
		}
		for _, tt := range tests {
			t.Run(tt.pragma, func(t *testing.T) {
				for n, conn := range map[string]*sql.Conn{"first": first, "second": second} {
					var got string
					if err := conn.QueryRowContext(ctx, "PRAGMA "+tt.pragma).Scan(&got); err != nil {
						t.Fatalf("%s: failed to read pragma: %v", n, err)
					}
					if got != tt.want {
						t.Errorf("%s connection: %s = %q, want %q", n, tt.pragma, got, tt.want)
					}
				}
			})
		}
	})

	t.Run("Memory", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		var fk int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
			t.Errorf("expected foreign keys on, got %d %v", fk, err)
		}
		if _, err := db.Exec("CREATE TABLE t (id INT)"); err != nil {
			t.Fatalf("failed to create table: %v", err)
		}
		if _, err := db.Exec("SELECT 1 FROM t"); err != nil {
			t.Errorf("expected table visible on the shared connection: %v", err)
		}
	})
}
