package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventUpcoming EventStatus = "upcoming"
	EventLive     EventStatus = "live"
	EventEnded    EventStatus = "ended"
	EventArchived EventStatus = "archived"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventUpcoming, EventLive, EventEnded, EventArchived:
		return true
	}
	return false
}

type EventType string

const (
	EventTypeLive    EventType = "live"
	EventTypeArchive EventType = "archive"
)

type Artist struct {
	bun.BaseModel `bun:"table:artists"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Slug      string    `bun:"slug,unique,notnull" json:"slug"`
	Bio       string    `bun:"bio,nullzero" json:"bio,omitempty"`
	ImageURL  string    `bun:"image_url,nullzero" json:"imageUrl,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`

	Events []*Event `bun:"rel:has-many,join:id=artist_id" json:"events,omitempty"`
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID           string      `bun:"id,pk" json:"id"`
	ArtistID     string      `bun:"artist_id,notnull" json:"artistId"`
	Title        string      `bun:"title,notnull" json:"title"`
	Slug         string      `bun:"slug,unique,notnull" json:"slug"`
	Description  string      `bun:"description,nullzero" json:"description,omitempty"`
	Status       EventStatus `bun:"status,notnull" json:"status"`
	EventType    EventType   `bun:"event_type,notnull" json:"eventType"`
	StartTime    *time.Time  `bun:"start_time" json:"startTime,omitempty"`
	EndTime      *time.Time  `bun:"end_time" json:"endTime,omitempty"`
	ThumbnailURL string      `bun:"thumbnail_url,nullzero" json:"thumbnailUrl,omitempty"`
	// StreamURL is the live HLS playlist or provider channel reference.
	StreamURL string `bun:"stream_url,nullzero" json:"-"`
	// ArchiveURL is the recorded MP4 or VOD playlist served after the event.
	ArchiveURL string    `bun:"archive_url,nullzero" json:"-"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Artist  *Artist   `bun:"rel:belongs-to,join:artist_id=id" json:"artist,omitempty"`
	Tickets []*Ticket `bun:"rel:has-many,join:id=event_id" json:"tickets,omitempty"`
}

// StreamRef picks the playable reference for the event's current phase.
// Archive events and archived live events prefer the recording.
func (e *Event) StreamRef() string {
	if e.EventType == EventTypeArchive || e.Status == EventArchived {
		if e.ArchiveURL != "" {
			return e.ArchiveURL
		}
		return e.StreamURL
	}
	if e.StreamURL != "" {
		return e.StreamURL
	}
	return e.ArchiveURL
}

// EventStatusUpdate is published by the scheduling side when an event changes phase.
type EventStatusUpdate struct {
	Slug      string      `json:"slug"`
	Status    EventStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
