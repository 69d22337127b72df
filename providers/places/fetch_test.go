package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"hbot-hub/config"
)

func testFetcher(serverURL string) *Fetcher {
	cfg := &config.Config{PlacesBaseURL: serverURL, PlacesAPIKey: "test-key"}
	return NewFetcher(cfg, zap.NewNop())
}

func TestDetails_ParsesBestResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/place/textsearch/json") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("api key not passed")
		}
		w.Write([]byte(`{"status":"OK","results":[
			{"name":"Dive Clinic","formatted_address":"Pier 4","rating":4.2,"photos":[{"photo_reference":"photoref"}]},
			{"name":"Second Hit","formatted_address":"Elsewhere"}
		]}`))
	}))
	defer server.Close()

	det, err := testFetcher(server.URL).Details(context.Background(), "Dive Clinic Pier 4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det.Name != "Dive Clinic" || det.Address != "Pier 4" || det.Rating != 4.2 {
		t.Fatalf("unexpected details: %+v", det)
	}
	if !strings.Contains(det.PhotoURL, "photoref") {
		t.Fatalf("photo url not built: %q", det.PhotoURL)
	}
}

func TestDetails_ErrorOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	if _, err := testFetcher(server.URL).Details(context.Background(), "nowhere"); err == nil {
		t.Fatalf("expected error for empty search result")
	}
}

func TestGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":48.1351,"lng":11.582}}}]}`))
	}))
	defer server.Close()

	lat, lng, err := testFetcher(server.URL).Geocode(context.Background(), "Munich")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lat != 48.1351 || lng != 11.582 {
		t.Fatalf("unexpected coordinates: %v, %v", lat, lng)
	}
}

func TestNearby_ZeroResultsIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	found, err := testFetcher(server.URL).Nearby(context.Background(), 48.1, 11.5, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected empty result, got %+v", found)
	}
}

func TestNearby_UsesVicinityWhenAddressMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","results":[{"place_id":"p1","name":"Chamber Center","vicinity":"Old Town 7","geometry":{"location":{"lat":1.5,"lng":2.5}},"rating":3.9}]}`))
	}))
	defer server.Close()

	found, err := testFetcher(server.URL).Nearby(context.Background(), 1.0, 2.0, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 place, got %d", len(found))
	}
	if found[0].Address != "Old Town 7" || found[0].Latitude != 1.5 {
		t.Fatalf("unexpected place: %+v", found[0])
	}
}
