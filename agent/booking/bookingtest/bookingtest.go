// Package bookingtest provides booking services backed by throwaway in-memory SQLite databases.
package bookingtest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
	"github.com/tanpawarit/Chative-Slot-Booking/pkg/database"
)

var dbSeq atomic.Int64

// NewRepository opens a migrated, private in-memory database closed at test cleanup.
func NewRepository(t testing.TB) *booking.BunRepository {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := database.Open(context.Background(), database.Config{
		Driver:       database.DriverSQLite,
		DSN:          dsn,
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := booking.NewBunRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return repo
}

// NewService wraps NewRepository in a booking.Service.
func NewService(t testing.TB, opts ...booking.Option) (*booking.Service, *booking.BunRepository) {
	t.Helper()

	repo := NewRepository(t)
	svc, err := booking.NewService(repo, opts...)
	if err != nil {
		t.Fatalf("new booking service: %v", err)
	}
	return svc, repo
}
