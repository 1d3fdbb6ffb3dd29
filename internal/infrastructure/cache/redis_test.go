package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestOpenRedis_SelectsDB(t *testing.T) {
	s := miniredis.RunT(t)

	c, err := OpenRedis(s.Addr(), 2)
	if err != nil {
		t.Fatalf("OpenRedis returned error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Set(ctx, "lending:probe", "ok", 0).Err(); err != nil {
		t.Fatalf("SET err: %v", err)
	}

	// the key must land in DB 2 only
	if got, err := s.DB(2).Get("lending:probe"); err != nil || got != "ok" {
		t.Fatalf("DB 2 value = %q, %v", got, err)
	}
	if s.DB(0).Exists("lending:probe") {
		t.Fatalf("key leaked into DB 0")
	}
}

func TestOpenRedis_ServerGone(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	if _, err := OpenRedis(addr, 0); err == nil {
		t.Fatal("expected error, got nil")
	}
}
