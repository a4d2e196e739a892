package models

import "time"

type GrantKind string

const (
	GrantStream     GrantKind = "stream"
	GrantNotStarted GrantKind = "not_started"
)

// StreamGrant is the result of a successful playback authorization.
// A not-started grant never carries a stream URL.
type StreamGrant struct {
	Kind      GrantKind  `json:"kind"`
	StreamURL string     `json:"streamUrl,omitempty"`
	ExpiresIn int64      `json:"expiresIn,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`

	PurchaseID   string      `json:"purchaseId"`
	EventID      string      `json:"eventId"`
	EventSlug    string      `json:"eventSlug"`
	EventTitle   string      `json:"eventTitle"`
	EventStatus  EventStatus `json:"eventStatus"`
	EventType    EventType   `json:"eventType"`
	ArtistName   string      `json:"artistName,omitempty"`
	ThumbnailURL string      `json:"thumbnailUrl,omitempty"`
}

func (g *StreamGrant) NotStarted() bool {
	return g.Kind == GrantNotStarted
}

// AccessSummary describes a valid ticket without releasing the stream.
type AccessSummary struct {
	PurchaseID        string      `json:"purchaseId"`
	Status            string      `json:"status"`
	PurchasedAt       *time.Time  `json:"purchasedAt,omitempty"`
	AccessTokenExpiry *time.Time  `json:"accessTokenExpiry,omitempty"`
	EventSlug         string      `json:"eventSlug"`
	EventTitle        string      `json:"eventTitle"`
	EventStatus       EventStatus `json:"eventStatus"`
	StartTime         *time.Time  `json:"startTime,omitempty"`
	TicketName        string      `json:"ticketName"`
	UserID            string      `json:"userId,omitempty"`
	Email             string      `json:"email,omitempty"`
}
