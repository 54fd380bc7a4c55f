package store

import (
	"time"

	"github.com/uptrace/bun"
)

// Venue is a place that hosts events. Lat/Lon are pointers because some
// venues come in without coordinates; those are kept but never mapped.
type Venue struct {
	bun.BaseModel `bun:"table:venues,alias:v"`

	ID   int64    `bun:"id,pk,autoincrement" json:"id"`
	Name string   `bun:"name" json:"name"`
	Lat  *float64 `bun:"lat" json:"lat"`
	Lon  *float64 `bun:"lon" json:"lon"`
	Logo string   `bun:"logo" json:"logo"`

	Events []*Event `bun:"rel:has-many,join:id=venue_id" json:"-"`
}

// Event is a single show at a venue.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID       int64     `bun:"id,pk,autoincrement" json:"id"`
	ShowName string    `bun:"show_name" json:"show_name"`
	Date     time.Time `bun:"date" json:"date"`
	Link     string    `bun:"link" json:"link"`
	Img      string    `bun:"img" json:"img"`
	VenueID  int64     `bun:"venue_id" json:"venue_id"`

	Venue *Venue `bun:"rel:belongs-to,join:venue_id=id" json:"venue,omitempty"`
}

// Deployment is the stored record of one deploy run's report.
type Deployment struct {
	bun.BaseModel `bun:"table:deployments,alias:d"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	RunID     string    `bun:"run_id" json:"run_id"`
	Address   string    `bun:"address" json:"address"`
	Service   string    `bun:"service" json:"service"`
	Status    string    `bun:"status" json:"status"`
	Message   string    `bun:"message" json:"msg"`
	Success   bool      `bun:"success" json:"success"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
