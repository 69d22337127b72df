package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"hbot-hub/config"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Record ist ein einzelner Datensatz aus der tabellarischen Content-API.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// Fetcher kapselt die tabellarische Content-API für Guides und Blog-Posts.
// Sie ist unabhängig vom relationalen Store.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Content-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// FetchView liest Datensätze aus einer benannten View, gedeckelt auf
// ContentMaxRecords und gefiltert auf Records, deren "Approved"-Feld (falls
// vorhanden) wahr ist. Transportfehler kommen als error zurück; die
// Handler degradieren dann zur leeren Liste.
func (f *Fetcher) FetchView(ctx context.Context, table, view string) ([]Record, error) {
	if f.Config.ContentAPIKey == "" || f.Config.ContentBaseID == "" {
		return nil, fmt.Errorf("content api is not configured")
	}

	log := f.Logger.With(zap.String("table", table), zap.String("view", view))
	maxRecords := f.Config.ContentMaxRecords
	// Ein fehlkonfiguriertes Limit (0/negativ) darf nicht wie "kein
	// Content" aussehen.
	if maxRecords <= 0 {
		maxRecords = 100
	}
	records := make([]Record, 0, maxRecords)
	offset := ""

	for len(records) < maxRecords {
		params := url.Values{}
		params.Set("maxRecords", fmt.Sprintf("%d", maxRecords))
		if view != "" {
			params.Set("view", view)
		}
		if offset != "" {
			params.Set("offset", offset)
		}
		reqURL := fmt.Sprintf("%s/%s/%s?%s",
			f.Config.ContentAPIBaseURL, f.Config.ContentBaseID, url.PathEscape(table), params.Encode())

		page, nextOffset, err := f.fetchPage(ctx, reqURL)
		if err != nil {
			return nil, err
		}

		for _, rec := range page {
			if !recordApproved(rec) {
				continue
			}
			records = append(records, rec)
			if len(records) >= maxRecords {
				break
			}
		}

		if nextOffset == "" {
			break
		}
		offset = nextOffset
	}

	log.Info("Fetched content records", zap.Int("count", len(records)))
	return records, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, reqURL string) ([]Record, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+f.Config.ContentAPIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("content api request failed with status: %d", resp.StatusCode)
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, "", err
	}
	return lr.Records, lr.Offset, nil
}

// recordApproved prüft das optionale Approved-Flag. Fehlt das Feld, gilt
// der Record als sichtbar; vorhanden zählt nur Bool true bzw. der String
// "true" (case-insensitive).
func recordApproved(rec Record) bool {
	v, ok := rec.Fields["Approved"]
	if !ok {
		return true
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}
