package access

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// QRGenerator renders watch links so a buyer can open the stream on another device.
type QRGenerator struct {
	baseURL string
	size    int
}

func NewQRGenerator(baseURL string) *QRGenerator {
	return &QRGenerator{baseURL: strings.TrimRight(baseURL, "/"), size: 256}
}

func (q *QRGenerator) WatchLink(eventSlug, token string) string {
	return fmt.Sprintf("%s/events/%s/watch?token=%s", q.baseURL, url.PathEscape(eventSlug), url.QueryEscape(token))
}

func (q *QRGenerator) WatchLinkPNG(eventSlug, token string) ([]byte, error) {
	if eventSlug == "" || token == "" {
		return nil, fmt.Errorf("event slug and token are required")
	}
	return qrcode.Encode(q.WatchLink(eventSlug, token), qrcode.Medium, q.size)
}
