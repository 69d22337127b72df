package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"hbot-hub/config"
	"hbot-hub/models"
	"hbot-hub/providers/places"
)

func TestCoerceApproved(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{true, true},
		{"true", true},
		{"TRUE", true},
		{" True ", true},
		{false, false},
		{"false", false},
		{nil, false},
		{"pending", false},
		{1.0, false},
		{"", false},
	}
	for _, tc := range cases {
		if got := CoerceApproved(tc.in); got != tc.want {
			t.Fatalf("CoerceApproved(%#v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCoerceCoordinate(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{51.5074, 51.5074},
		{"51.5074", 51.5074},
		{"-0.1278", -0.1278},
		{"garbage", 0},
		{nil, 0},
		{"NaN", 0},
	}
	for _, tc := range cases {
		if got := CoerceCoordinate(tc.in); got != tc.want {
			t.Fatalf("CoerceCoordinate(%#v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestHasLocation_BoundaryAtMilliDegree(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{0.0005, 0.0005, false}, // Platzhalter nahe (0,0)
		{0.001, 0.001, false},   // Grenze inklusive
		{0.01, 0, true},         // eine Achse reicht
		{0, 0.01, true},
		{-0.0002, 0.0004, false},
		{48.1351, 11.5820, true},
	}
	for _, tc := range cases {
		if got := HasLocation(tc.lat, tc.lon); got != tc.want {
			t.Fatalf("HasLocation(%v, %v) = %v, want %v", tc.lat, tc.lon, got, tc.want)
		}
	}
}

func TestApprovedWithLocation_FiltersAndNormalizes(t *testing.T) {
	db := newTestDB(t)
	svc := NewProviderService(db, zap.NewNop(), nil, nil, 4, time.Hour)

	rows := []models.Provider{
		{Name: "Munich Clinic", Approved: "true", Latitude: "48.1351", Longitude: "11.5820"},
		{Name: "Case Boolean String", Approved: "TRUE", Latitude: "10", Longitude: "20"},
		{Name: "Pending", Approved: "pending", Latitude: "48.0", Longitude: "11.0"},
		{Name: "No Location", Approved: "true", Latitude: "0", Longitude: "0"},
		{Name: "Bad Coords", Approved: "true", Latitude: "garbage", Longitude: "garbage"},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	got := svc.ApprovedWithLocation()
	if len(got) != 2 {
		t.Fatalf("expected 2 providers, got %d: %+v", len(got), got)
	}
	if got[0].Name != "Munich Clinic" || got[1].Name != "Case Boolean String" {
		t.Fatalf("unexpected providers: %+v", got)
	}
	if !got[0].Approved || got[0].Latitude != 48.1351 || got[0].Longitude != 11.5820 {
		t.Fatalf("normalization failed: %+v", got[0])
	}
}

func TestApprovedWithLocation_FailsOpenOnStoreFailure(t *testing.T) {
	db := newTestDB(t)
	svc := NewProviderService(db, zap.NewNop(), nil, nil, 4, time.Hour)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.Close()

	if got := svc.ApprovedWithLocation(); len(got) != 0 {
		t.Fatalf("expected empty list on store failure, got %+v", got)
	}
}

func placesTestFetcher(t *testing.T, handler http.HandlerFunc) (*places.Fetcher, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	cfg := &config.Config{PlacesBaseURL: server.URL, PlacesAPIKey: "test-key"}
	return places.NewFetcher(cfg, zap.NewNop()), server.Close
}

func TestMapProviders_EnrichesBoundedPrefix(t *testing.T) {
	db := newTestDB(t)

	fetcher, closeServer := placesTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","results":[{"name":"Clinic","formatted_address":"Somewhere 1","rating":4.5,"photos":[{"photo_reference":"ref123"}]}]}`))
	})
	defer closeServer()

	svc := NewProviderService(db, zap.NewNop(), fetcher, nil, 1, time.Hour)

	for _, p := range []models.Provider{
		{Name: "First", Approved: "true", Latitude: "48.1", Longitude: "11.5"},
		{Name: "Second", Approved: "true", Latitude: "52.5", Longitude: "13.4"},
	} {
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	got := svc.MapProviders(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(got))
	}
	if got[0].PhotoURL == "" || got[0].Rating != 4.5 {
		t.Fatalf("first provider not enriched: %+v", got[0])
	}
	// Batch-Größe 1: der zweite Eintrag bleibt unangereichert.
	if got[1].PhotoURL != "" {
		t.Fatalf("second provider should not be enriched: %+v", got[1])
	}
}

func TestMapProviders_KeepsProviderWhenEnrichmentFails(t *testing.T) {
	db := newTestDB(t)

	fetcher, closeServer := placesTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeServer()

	svc := NewProviderService(db, zap.NewNop(), fetcher, nil, 4, time.Hour)

	if err := db.Create(&models.Provider{Name: "Resilient", Approved: "true", Latitude: "48.1", Longitude: "11.5"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got := svc.MapProviders(context.Background())
	if len(got) != 1 {
		t.Fatalf("provider dropped on enrichment failure: %+v", got)
	}
	if got[0].Name != "Resilient" || got[0].PhotoURL != "" {
		t.Fatalf("unexpected provider state: %+v", got[0])
	}
}

func TestRefreshSnapshot_InstallsLatestState(t *testing.T) {
	db := newTestDB(t)
	svc := NewProviderService(db, zap.NewNop(), nil, nil, 4, time.Hour)

	if _, _, ok := svc.Snapshot(); ok {
		t.Fatalf("expected no snapshot before first refresh")
	}

	if err := db.Create(&models.Provider{Name: "One", Approved: "true", Latitude: "48.1", Longitude: "11.5"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if count := svc.RefreshSnapshot(context.Background()); count != 1 {
		t.Fatalf("expected snapshot with 1 provider, got %d", count)
	}

	if err := db.Create(&models.Provider{Name: "Two", Approved: "true", Latitude: "52.5", Longitude: "13.4"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if count := svc.RefreshSnapshot(context.Background()); count != 2 {
		t.Fatalf("expected refreshed snapshot with 2 providers, got %d", count)
	}

	list, refreshedAt, ok := svc.Snapshot()
	if !ok || len(list) != 2 {
		t.Fatalf("snapshot not installed: ok=%v list=%+v", ok, list)
	}
	if refreshedAt.IsZero() {
		t.Fatalf("snapshot timestamp missing")
	}
}

func TestRefreshSnapshot_StaleRefreshIsDiscarded(t *testing.T) {
	db := newTestDB(t)

	var requests atomic.Int32
	release := make(chan struct{})
	firstRequestSeen := make(chan struct{})
	fetcher, closeServer := placesTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			close(firstRequestSeen)
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","results":[{"name":"Clinic","formatted_address":"Somewhere 1","rating":4.5}]}`))
	})
	defer closeServer()

	svc := NewProviderService(db, zap.NewNop(), fetcher, nil, 4, time.Hour)

	if err := db.Create(&models.Provider{Name: "One", Approved: "true", Latitude: "48.1", Longitude: "11.5"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// Erster Refresh hängt im Enrichment fest, bis release geschlossen wird.
	firstDone := make(chan int)
	go func() {
		firstDone <- svc.RefreshSnapshot(context.Background())
	}()
	<-firstRequestSeen

	// Ein später gestarteter Refresh sieht bereits zwei Anbieter und
	// installiert seinen Stand zuerst.
	if err := db.Create(&models.Provider{Name: "Two", Approved: "true", Latitude: "52.5", Longitude: "13.4"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if count := svc.RefreshSnapshot(context.Background()); count != 2 {
		t.Fatalf("expected second refresh to install 2 providers, got %d", count)
	}

	// Danach darf der jetzt fertig werdende, ältere Refresh den neueren
	// Stand nicht mehr überschreiben.
	close(release)
	if count := <-firstDone; count != 2 {
		t.Fatalf("stale refresh must report the installed snapshot size, got %d", count)
	}

	list, _, ok := svc.Snapshot()
	if !ok || len(list) != 2 {
		t.Fatalf("stale refresh overwrote the newer snapshot: %+v", list)
	}
	if list[0].Name != "One" || list[1].Name != "Two" {
		t.Fatalf("unexpected snapshot contents: %+v", list)
	}
}
