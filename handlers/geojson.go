package handlers

import (
	"time"

	"github.com/OmerS16/stagehop-backend/internal/store"
)

// FeatureCollection is the GeoJSON payload the map frontend consumes.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one event pinned at its venue's coordinates.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is a GeoJSON point, coordinates ordered [lon, lat].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Properties carries the event details shown in the popup.
type Properties struct {
	ID       int64        `json:"id"`
	ShowName string       `json:"show_name"`
	Date     *string      `json:"date"`
	Link     string       `json:"link"`
	Img      string       `json:"img"`
	Venue    FeatureVenue `json:"venue"`
}

// FeatureVenue is the venue subset embedded in each feature.
type FeatureVenue struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// toGeoJSON converts events into a FeatureCollection. Events whose venue
// is missing or has no coordinates are left out.
func toGeoJSON(events []store.Event) FeatureCollection {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: []Feature{},
	}

	for _, e := range events {
		v := e.Venue
		if v == nil || v.Lat == nil || v.Lon == nil {
			continue
		}

		var date *string
		if !e.Date.IsZero() {
			formatted := e.Date.Format(time.RFC3339)
			date = &formatted
		}

		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{*v.Lon, *v.Lat},
			},
			Properties: Properties{
				ID:       e.ID,
				ShowName: e.ShowName,
				Date:     date,
				Link:     e.Link,
				Img:      e.Img,
				Venue: FeatureVenue{
					ID:   v.ID,
					Name: v.Name,
					Logo: v.Logo,
				},
			},
		})
	}

	return fc
}
