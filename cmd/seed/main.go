// Command seed loads demo artists, events and tickets into an empty database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"time"

	"ms-livestream/internal/apperror"
	catalogdb "ms-livestream/internal/catalog/db"
	"ms-livestream/internal/config"
	"ms-livestream/internal/database/migrations"
	inventorydb "ms-livestream/internal/inventory/db"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	dsnFlag     = flag.String("dsn", "", "Postgres DSN (defaults to POSTGRES_DSN)")
	migrateFlag = flag.Bool("migrate", true, "apply schema migrations before seeding")
)

type demoEvent struct {
	event   models.Event
	tickets []models.Ticket
}

func intPtr(v int) *int { return &v }

func demoData(now time.Time) ([]models.Artist, []demoEvent) {
	artists := []models.Artist{
		{ID: "artist-luna", Name: "Luna Park", Slug: "luna-park", Bio: "Dream pop trio from Osaka."},
		{ID: "artist-kite", Name: "Kite Theory", Slug: "kite-theory", Bio: "Instrumental math rock."},
	}

	liveStart := now.Add(-30 * time.Minute)
	upcomingStart := now.Add(72 * time.Hour)
	pastStart := now.Add(-30 * 24 * time.Hour)

	events := []demoEvent{
		{
			event: models.Event{
				ID: "event-luna-live", ArtistID: "artist-luna", Title: "Luna Park Live from Namba", Slug: "luna-park-namba",
				Status: models.EventLive, EventType: models.EventTypeLive, StartTime: &liveStart,
				StreamURL: "https://media.example.com/live/luna-namba/index.m3u8",
			},
			tickets: []models.Ticket{
				{ID: "ticket-luna-ga", EventID: "event-luna-live", Name: "General Admission", Price: 3000, IsActive: true},
				{ID: "ticket-luna-vip", EventID: "event-luna-live", Name: "VIP with backstage cam", Price: 8000, Stock: intPtr(50), IsActive: true},
			},
		},
		{
			event: models.Event{
				ID: "event-kite-tour", ArtistID: "artist-kite", Title: "Kite Theory Winter Tour Final", Slug: "kite-theory-winter-final",
				Status: models.EventUpcoming, EventType: models.EventTypeLive, StartTime: &upcomingStart,
				StreamURL: "https://media.example.com/live/kite-final/index.m3u8",
			},
			tickets: []models.Ticket{
				{ID: "ticket-kite-early", EventID: "event-kite-tour", Name: "Early Bird", Price: 2500, Stock: intPtr(100), IsActive: true},
				{ID: "ticket-kite-ga", EventID: "event-kite-tour", Name: "General Admission", Price: 3500, IsActive: false},
			},
		},
		{
			event: models.Event{
				ID: "event-luna-archive", ArtistID: "artist-luna", Title: "Luna Park Acoustic Session", Slug: "luna-park-acoustic",
				Status: models.EventArchived, EventType: models.EventTypeArchive, StartTime: &pastStart,
				ArchiveURL: "https://media.example.com/vod/luna-acoustic/index.m3u8",
			},
			tickets: []models.Ticket{
				{ID: "ticket-luna-archive", EventID: "event-luna-archive", Name: "On Demand", Price: 1500, IsActive: true},
			},
		},
	}
	return artists, events
}

func seed(ctx context.Context, db *bun.DB, log *logger.Logger) error {
	artists, events := demoData(time.Now().UTC())

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		catalog := &catalogdb.DB{Bun: tx}
		tickets := &inventorydb.DB{Bun: tx}

		for i := range artists {
			_, err := catalog.GetArtistBySlug(ctx, artists[i].Slug)
			if err == nil {
				log.Info("SEED", fmt.Sprintf("Artist %s already present, skipping", artists[i].Slug))
				continue
			}
			if !errors.Is(err, apperror.ErrArtistNotFound) {
				return err
			}
			if err := catalog.CreateArtist(ctx, &artists[i]); err != nil {
				return fmt.Errorf("create artist %s: %w", artists[i].Slug, err)
			}
		}

		for _, de := range events {
			e := de.event
			if _, err := catalog.GetEventByID(ctx, e.ID); err == nil {
				log.Info("SEED", fmt.Sprintf("Event %s already present, skipping", e.Slug))
				continue
			} else if !errors.Is(err, apperror.ErrEventNotFound) {
				return err
			}
			if err := catalog.CreateEvent(ctx, &e); err != nil {
				return fmt.Errorf("create event %s: %w", e.Slug, err)
			}
			for j := range de.tickets {
				if err := tickets.CreateTicket(ctx, &de.tickets[j]); err != nil {
					return fmt.Errorf("create ticket %s: %w", de.tickets[j].ID, err)
				}
			}
			log.Info("SEED", fmt.Sprintf("Seeded %s with %d ticket types", e.Slug, len(de.tickets)))
		}
		return nil
	})
}

func main() {
	flag.Parse()
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	dsn := cfg.Database.DSN
	if *dsnFlag != "" {
		dsn = *dsnFlag
	}

	if *migrateFlag {
		runner := migrations.NewRunner(dsn, cfg.Migrations, log)
		if err := runner.Up(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		runner.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	defer sqldb.Close()
	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := seed(ctx, db, log); err != nil {
		log.Fatal("SEED", err.Error())
	}
	log.Info("SEED", "Demo catalog ready")
}
