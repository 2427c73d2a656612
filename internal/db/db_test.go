package db

import (
	"context"
	"testing"

	"player-ticket-gateway/internal/config"
)

func TestOpenWithoutURL(t *testing.T) {
	c, closeFn, err := Open(&config.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()
	if c != nil {
		t.Fatalf("expected nil db when POSTGRES_URL is unset")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	drv, closeFn, err := OpenLocal()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer closeFn()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, drv); err != nil {
			t.Fatalf("migrate #%d: %v", i+1, err)
		}
	}

	sqldb := drv.DB()
	insert := `INSERT INTO tickets (id, game_id, area_id, uid, status, created_at, updated_at) VALUES ($1, 'g', 'a', 'u', $2, 1, 1)`
	if _, err := sqldb.ExecContext(ctx, insert, "t1", "WAITING"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := sqldb.ExecContext(ctx, insert, "t2", "IN_PROGRESS"); err == nil {
		t.Fatalf("second active ticket for the same player must violate the unique index")
	}
	if _, err := sqldb.ExecContext(ctx, insert, "t3", "RESOLVED"); err != nil {
		t.Fatalf("resolved tickets are not constrained: %v", err)
	}
}
