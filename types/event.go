package types

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ConfirmationCodeLength is the number of characters in an event's check-in code.
const ConfirmationCodeLength = 6

// Event is a community event attendees can check in to.
type Event struct {
	// ID is the unique identifier of the event.
	ID int `json:"id" db:"id"`

	Title string `json:"title" db:"title"`

	// Date is kept as the free-form string entered by the organiser.
	Date string `json:"date" db:"date"`

	// Location is either a plain address or "address|lat,lng".
	Location string `json:"location" db:"location"`

	Description string `json:"description,omitempty" db:"description"`

	// QRCode is the payload encoded in the event's QR image,
	// formatted as EVENT-{stamp}-{ConfirmationCode}.
	QRCode string `json:"qr_code" db:"qr_code"`

	// ConfirmationCode is the 6-character upper-case code typed or scanned
	// by attendees to check in.
	ConfirmationCode string `json:"confirmation_code" db:"confirmation_code"`

	// Attendees is the denormalized list of attendee emails.
	Attendees []string `json:"attendees" db:"-"`

	// CreatedBy is the ID of the admin who created the event.
	CreatedBy int `json:"created_by" db:"created_by"`

	Suspended bool   `json:"suspended" db:"suspended"`
	ImageURL  string `json:"image_url,omitempty" db:"image_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location is an address with optional coordinates.
type Location struct {
	Address        string  `json:"address"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	HasCoordinates bool    `json:"has_coordinates"`
}

// ParseLocation unpacks an event location string. Strings without a
// well-formed "|lat,lng" suffix are treated as a bare address.
func ParseLocation(raw string) Location {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, "|")
	if idx < 0 {
		return Location{Address: raw}
	}
	latRaw, lngRaw, ok := strings.Cut(raw[idx+1:], ",")
	if !ok {
		return Location{Address: raw}
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Location{Address: raw}
	}
	return Location{
		Address:        strings.TrimSpace(raw[:idx]),
		Lat:            lat,
		Lng:            lng,
		HasCoordinates: true,
	}
}

// String packs the location back into its stored form.
func (l Location) String() string {
	if !l.HasCoordinates {
		return l.Address
	}
	return fmt.Sprintf("%s|%s,%s", l.Address,
		strconv.FormatFloat(l.Lat, 'f', -1, 64),
		strconv.FormatFloat(l.Lng, 'f', -1, 64))
}

// MapEmbedURL returns an iframe-embeddable map URL centred on the location.
func (l Location) MapEmbedURL() string {
	if !l.HasCoordinates {
		return ""
	}
	return fmt.Sprintf("https://maps.google.com/maps?q=%s&t=&z=15&ie=UTF8&iwloc=&output=embed", l.coordinates())
}

// MapURL returns an external map link for the location.
func (l Location) MapURL() string {
	if !l.HasCoordinates {
		if l.Address == "" {
			return ""
		}
		return "https://www.google.com/maps?q=" + url.QueryEscape(l.Address)
	}
	return "https://www.google.com/maps?q=" + l.coordinates()
}

func (l Location) coordinates() string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lng, 'f', -1, 64)
}

// EventView is the API representation of an event with its location unpacked.
type EventView struct {
	Event
	Place       Location `json:"place"`
	MapEmbedURL string   `json:"map_embed_url,omitempty"`
	MapURL      string   `json:"map_url,omitempty"`
}

// NewEventView decorates an event with its parsed location and map links.
func NewEventView(e Event) EventView {
	loc := ParseLocation(e.Location)
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	return EventView{
		Event:       e,
		Place:       loc,
		MapEmbedURL: loc.MapEmbedURL(),
		MapURL:      loc.MapURL(),
	}
}
