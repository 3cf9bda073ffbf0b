package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Booking is one reserved (date, slot) pair. Rows are insert-only.
type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Phone     string    `bun:"phone,notnull" json:"phone"`
	Date      string    `bun:"date,notnull,unique:bookings_date_slot_key" json:"date"`
	Slot      string    `bun:"slot,notnull,unique:bookings_date_slot_key" json:"slot"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Repository is the persistence collaborator behind Service.
type Repository interface {
	BookedSlots(ctx context.Context, date string) ([]string, error)
	// InsertIfAbsent reports false without error when (date, slot) is already taken.
	InsertIfAbsent(ctx context.Context, b *Booking) (bool, error)
}

type BunRepository struct {
	db bun.IDB
}

var _ Repository = (*BunRepository)(nil)

func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

func (r *BunRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().
		Model((*Booking)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create bookings table: %w", err)
	}
	return nil
}

func (r *BunRepository) BookedSlots(ctx context.Context, date string) ([]string, error) {
	var slots []string
	err := r.db.NewSelect().
		Model((*Booking)(nil)).
		Column("slot").
		Where("? = ?", bun.Ident("date"), date).
		Scan(ctx, &slots)
	if err != nil {
		return nil, fmt.Errorf("select booked slots for %s: %w", date, err)
	}
	return slots, nil
}

func (r *BunRepository) InsertIfAbsent(ctx context.Context, b *Booking) (bool, error) {
	res, err := r.db.NewInsert().
		Model(b).
		On("CONFLICT (?, ?) DO NOTHING", bun.Ident("date"), bun.Ident("slot")).
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert booking %s %s: %w", b.Date, b.Slot, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// List returns every booking for a date ordered by slot.
func (r *BunRepository) List(ctx context.Context, date string) ([]Booking, error) {
	var out []Booking
	err := r.db.NewSelect().
		Model(&out).
		Where("? = ?", bun.Ident("date"), date).
		OrderExpr("? ASC", bun.Ident("slot")).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings for %s: %w", date, err)
	}
	return out, nil
}
