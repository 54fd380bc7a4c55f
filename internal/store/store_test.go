package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s, err := New("sqlite", filepath.Join(t.TempDir(), "stagehop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Init(context.Background()))
	return s
}

func ptr(f float64) *float64 { return &f }

func seed(t *testing.T, s *Store) (Venue, Venue) {
	t.Helper()
	ctx := context.Background()

	blueNote := Venue{Name: "Blue Note", Lat: ptr(32.07), Lon: ptr(34.78), Logo: "bluenote.png"}
	require.NoError(t, s.AddVenue(ctx, &blueNote))

	barby := Venue{Name: "Barby", Lat: ptr(32.05), Lon: ptr(34.75)}
	require.NoError(t, s.AddVenue(ctx, &barby))

	base := time.Date(2026, 8, 25, 20, 0, 0, 0, time.UTC)
	shows := []Event{
		{ShowName: "Jazz Quartet", Date: base, VenueID: blueNote.ID, Link: "https://example.com/jq"},
		{ShowName: "Indie Night", Date: base.AddDate(0, 0, 1), VenueID: barby.ID},
		{ShowName: "Late Show", Date: base.AddDate(0, 0, 5), VenueID: blueNote.ID},
	}
	for i := range shows {
		require.NoError(t, s.AddEvent(ctx, &shows[i]))
	}

	return blueNote, barby
}

func TestVenues(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	venues, err := s.Venues(context.Background())
	require.NoError(t, err)
	require.Len(t, venues, 2)
	assert.Equal(t, "Barby", venues[0].Name) // ordered by name
	assert.Equal(t, "Blue Note", venues[1].Name)
}

func TestEventsBetween(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	from := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 26, 23, 59, 59, 0, time.UTC)

	events, err := s.EventsBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Jazz Quartet", events[0].ShowName)
	assert.Equal(t, "Indie Night", events[1].ShowName)
	require.NotNil(t, events[0].Venue)
	assert.Equal(t, "Blue Note", events[0].Venue.Name)
}

func TestEventsVenueNameFilter(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	events, err := s.Events(context.Background(), EventFilter{VenueName: "blue"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "Blue Note", e.Venue.Name)
	}
}

func TestEventsDateBounds(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	from := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	events, err := s.Events(context.Background(), EventFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Indie Night", events[0].ShowName)

	to := time.Date(2026, 8, 25, 23, 59, 59, 0, time.UTC)
	events, err = s.Events(context.Background(), EventFilter{To: &to})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Jazz Quartet", events[0].ShowName)
}

func TestEventsPagination(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	events, err := s.Events(context.Background(), EventFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = s.Events(context.Background(), EventFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Late Show", events[0].ShowName)
}

func TestRecordDeployment(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := Deployment{
		RunID:     "run-1",
		Address:   "198.51.100.1",
		Service:   "myapi",
		Status:    "active (running)",
		Message:   "successfully deployed",
		Success:   true,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, s.RecordDeployment(ctx, &first))

	second := Deployment{RunID: "run-2", Address: "198.51.100.1", Service: "myapi", Message: "pull failed"}
	require.NoError(t, s.RecordDeployment(ctx, &second))
	assert.False(t, second.CreatedAt.IsZero())

	deployments, err := s.Deployments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, deployments, 2)
	assert.Equal(t, "run-2", deployments[0].RunID) // newest first
	assert.False(t, deployments[0].Success)
	assert.True(t, deployments[1].Success)
}
