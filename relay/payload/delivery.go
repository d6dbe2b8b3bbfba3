package payload

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	TrackingIDHeader = "x-zm-trackingid"
	RetryNumHeader   = "x-zoom-retry-num"
)

// Delivery holds the Zoom delivery metadata carried in headers
type Delivery struct {
	TrackingID string
	RetryNum   int
}

// DeliveryFromHeader reads tracking and retry headers. A malformed retry number counts as zero.
func DeliveryFromHeader(h http.Header) Delivery {
	d := Delivery{
		TrackingID: strings.TrimSpace(h.Get(TrackingIDHeader)),
	}
	if n, err := strconv.Atoi(strings.TrimSpace(h.Get(RetryNumHeader))); err == nil && n > 0 {
		d.RetryNum = n
	}
	return d
}

// Retried is true when Zoom marked this as a redelivery
func (d Delivery) Retried() bool {
	return d.RetryNum > 0
}

// TrackingIDPtr returns nil when no tracking ID was sent, so it serializes as null
func (d Delivery) TrackingIDPtr() *string {
	if d.TrackingID == "" {
		return nil
	}
	id := d.TrackingID
	return &id
}
