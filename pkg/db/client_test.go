package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:db_client_test?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.Migrator().DropTable(&testModel{}); err != nil {
		t.Fatalf("failed to reset sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db)
	if !client.IsSQLite() {
		t.Fatalf("expected sqlite client")
	}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsContention(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pgx serialization", fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pq lock timeout", &pq.Error{Code: "55P03"}, true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"unique", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsContention(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

func TestIsCheckViolation(t *testing.T) {
	if !IsCheckViolation(&pgconn.PgError{Code: "23514"}) {
		t.Fatalf("expected postgres check violation")
	}
	if IsCheckViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation is not a check violation")
	}
	if !IsCheckViolation(errors.New("CHECK constraint failed: chk_capacity_slots_reserved")) {
		t.Fatalf("expected sqlite check violation")
	}
	if IsCheckViolation(nil) {
		t.Fatalf("nil is not a check violation")
	}
}
