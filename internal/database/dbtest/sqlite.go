// Package dbtest opens in-memory SQLite databases with the service schema for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-livestream/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewSQLite returns a bun DB over a private in-memory database with every table created.
// The pool is limited to one connection, so code under test must use the tx it is handed.
func NewSQLite(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Artist)(nil),
		(*models.Event)(nil),
		(*models.Ticket)(nil),
		(*models.Purchase)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}
	return bunDB
}

// Fixture is a minimal artist, event and ticket graph.
type Fixture struct {
	Artist *models.Artist
	Event  *models.Event
	Ticket *models.Ticket
}

// Seed inserts one artist with one event and one ticket. Stock nil means unlimited.
func Seed(t testing.TB, db bun.IDB, status models.EventStatus, stock *int) Fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	start := now.Add(2 * time.Hour)

	f := Fixture{
		Artist: &models.Artist{ID: "artist-1", Name: "Luna Park", Slug: "luna-park", CreatedAt: now},
		Event: &models.Event{
			ID:         "event-1",
			ArtistID:   "artist-1",
			Title:      "Luna Park Live",
			Slug:       "luna-park-live",
			Status:     status,
			EventType:  models.EventTypeLive,
			StartTime:  &start,
			StreamURL:  "https://media.example.com/live/luna/index.m3u8",
			ArchiveURL: "https://media.example.com/vod/luna.mp4",
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		Ticket: &models.Ticket{
			ID:        "ticket-1",
			EventID:   "event-1",
			Name:      "General Admission",
			Price:     3000,
			Stock:     stock,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	for _, model := range []interface{}{f.Artist, f.Event, f.Ticket} {
		if _, err := db.NewInsert().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to seed %T: %v", model, err)
		}
	}
	return f
}

// SoldCount reads the current sold count straight from the table.
func SoldCount(t testing.TB, db bun.IDB, ticketID string) int {
	t.Helper()
	var ticket models.Ticket
	if err := db.NewSelect().Model(&ticket).Where("id = ?", ticketID).Scan(context.Background()); err != nil {
		t.Fatalf("Failed to read ticket %s: %v", ticketID, err)
	}
	return ticket.SoldCount
}

func IntPtr(v int) *int { return &v }
