package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Location
	}{
		{
			name: "bare address",
			raw:  "Plaza Principal, Centro",
			want: Location{Address: "Plaza Principal, Centro"},
		},
		{
			name: "packed coordinates",
			raw:  "Plaza Principal|19.4326,-99.1332",
			want: Location{Address: "Plaza Principal", Lat: 19.4326, Lng: -99.1332, HasCoordinates: true},
		},
		{
			name: "pipe in address with coordinates",
			raw:  "Salon A | Piso 2|20.5,-100.25",
			want: Location{Address: "Salon A | Piso 2", Lat: 20.5, Lng: -100.25, HasCoordinates: true},
		},
		{
			name: "malformed coordinates",
			raw:  "Parque|abc,def",
			want: Location{Address: "Parque|abc,def"},
		},
		{
			name: "out of range",
			raw:  "Parque|120,10",
			want: Location{Address: "Parque|120,10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseLocation(tt.raw))
		})
	}
}

func TestLocationStringAndMaps(t *testing.T) {
	loc := Location{Address: "Kiosko", Lat: 19.5, Lng: -99.25, HasCoordinates: true}
	require.Equal(t, "Kiosko|19.5,-99.25", loc.String())
	require.Equal(t, "https://www.google.com/maps?q=19.5,-99.25", loc.MapURL())
	require.Contains(t, loc.MapEmbedURL(), "q=19.5,-99.25")
	require.Contains(t, loc.MapEmbedURL(), "output=embed")

	bare := Location{Address: "Casa de la Cultura"}
	require.Equal(t, "Casa de la Cultura", bare.String())
	require.Empty(t, bare.MapEmbedURL())
	require.Equal(t, "https://www.google.com/maps?q=Casa+de+la+Cultura", bare.MapURL())
}

func TestNewEventViewDefaultsAttendees(t *testing.T) {
	view := NewEventView(Event{ID: 1, Location: "Kiosko|1,2"})
	require.NotNil(t, view.Attendees)
	require.True(t, view.Place.HasCoordinates)
	require.NotEmpty(t, view.MapEmbedURL)
}
