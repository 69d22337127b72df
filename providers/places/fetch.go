package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"hbot-hub/config"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// Fetcher kapselt die Places-API (Details, Geocoding, Nearby). Alle Aufrufe
// laufen serverseitig, damit der API-Key und die Quota nicht im Client
// liegen.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Places-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

func (f *Fetcher) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", f.Config.PlacesAPIKey)
	reqURL := fmt.Sprintf("%s%s?%s", f.Config.PlacesBaseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places request failed with status: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Details sucht einen Ort per Freitext und liefert Name, Adresse, Rating
// und eine Foto-URL des besten Treffers.
func (f *Fetcher) Details(ctx context.Context, query string) (*Details, error) {
	params := url.Values{}
	params.Set("query", query)

	var sr searchResponse
	if err := f.get(ctx, "/place/textsearch/json", params, &sr); err != nil {
		return nil, err
	}
	if sr.Status != "OK" || len(sr.Results) == 0 {
		return nil, fmt.Errorf("places search returned status %q", sr.Status)
	}

	best := sr.Results[0]
	det := &Details{
		Name:    best.Name,
		Address: best.FormattedAddress,
		Rating:  best.Rating,
	}
	if len(best.Photos) > 0 {
		det.PhotoURL = fmt.Sprintf("%s/place/photo?maxwidth=800&photo_reference=%s&key=%s",
			f.Config.PlacesBaseURL, url.QueryEscape(best.Photos[0].PhotoReference), f.Config.PlacesAPIKey)
	}
	return det, nil
}

// Geocode löst einen Freitext in ein Koordinatenpaar auf.
func (f *Fetcher) Geocode(ctx context.Context, address string) (float64, float64, error) {
	params := url.Values{}
	params.Set("address", address)

	var gr geocodeResponse
	if err := f.get(ctx, "/geocode/json", params, &gr); err != nil {
		return 0, 0, err
	}
	if gr.Status != "OK" || len(gr.Results) == 0 {
		return 0, 0, fmt.Errorf("geocode returned status %q", gr.Status)
	}
	loc := gr.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

// Nearby liefert Points of Interest rund um eine Koordinate.
func (f *Fetcher) Nearby(ctx context.Context, lat, lng float64, radiusMeters int) ([]Place, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", fmt.Sprintf("%d", radiusMeters))
	params.Set("keyword", "hyperbaric")

	var sr searchResponse
	if err := f.get(ctx, "/place/nearbysearch/json", params, &sr); err != nil {
		return nil, err
	}
	// ZERO_RESULTS ist kein Fehler, nur eine leere Gegend.
	if sr.Status != "OK" && sr.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("nearby search returned status %q", sr.Status)
	}

	found := make([]Place, 0, len(sr.Results))
	for _, r := range sr.Results {
		addr := r.FormattedAddress
		if addr == "" {
			addr = r.Vicinity
		}
		found = append(found, Place{
			PlaceID:   r.PlaceID,
			Name:      r.Name,
			Address:   addr,
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
			Rating:    r.Rating,
		})
	}
	return found, nil
}
