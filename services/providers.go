package services

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hbot-hub/models"
	"hbot-hub/providers/places"
)

// MapProvider ist die strikt typisierte Form eines Provider-Eintrags für
// die Karten-Darstellung.
type MapProvider struct {
	ID        uint           `json:"id"`
	Name      string         `json:"name"`
	Address   string         `json:"address,omitempty"`
	City      string         `json:"city,omitempty"`
	Country   string         `json:"country,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Website   string         `json:"website,omitempty"`
	Approved  bool           `json:"approved"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	PlaceID   string         `json:"place_id,omitempty"`
	PhotoURL  string         `json:"photo_url,omitempty"`
	Rating    float64        `json:"rating,omitempty"`
	Hours     datatypes.JSON `json:"hours,omitempty"`
}

// ProviderService normalisiert Provider-Zeilen, filtert nach Approval und
// Koordinaten-Validität und reichert einen begrenzten Prefix über die
// Places-API an. Lesefehler degradieren zur leeren Liste.
type ProviderService struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	Places    *places.Fetcher
	Cache     *redis.Client // nil, wenn kein Redis konfiguriert
	BatchSize int
	CacheTTL  time.Duration

	mu         sync.Mutex
	seq        uint64
	installed  uint64
	snapshot   []MapProvider
	snapshotAt time.Time
}

// NewProviderService erstellt einen neuen ProviderService.
func NewProviderService(db *gorm.DB, logger *zap.Logger, pl *places.Fetcher, cache *redis.Client, batchSize int, cacheTTL time.Duration) *ProviderService {
	if batchSize <= 0 {
		batchSize = 12
	}
	return &ProviderService{
		DB:        db,
		Logger:    logger,
		Places:    pl,
		Cache:     cache,
		BatchSize: batchSize,
		CacheTTL:  cacheTTL,
	}
}

// Normalize koerziert eine lose typisierte Provider-Zeile in die strikte
// Karten-Form. approved: Bool-Passthrough bzw. "true" (case-insensitive);
// Koordinaten: Zahl-Passthrough bzw. ParseFloat mit 0 als Fallback.
func Normalize(p models.Provider) MapProvider {
	return MapProvider{
		ID:        p.ID,
		Name:      p.Name,
		Address:   p.Address,
		City:      p.City,
		Country:   p.Country,
		Phone:     p.Phone,
		Website:   p.Website,
		Approved:  CoerceApproved(p.Approved),
		Latitude:  CoerceCoordinate(p.Latitude),
		Longitude: CoerceCoordinate(p.Longitude),
		PlaceID:   p.PlaceID,
		Hours:     p.Hours,
	}
}

// HasLocation meldet, ob ein Koordinatenpaar als echte Position gilt.
// Paare mit |lat| <= 0.001 UND |lon| <= 0.001 gelten als "keine Position":
// das ist eine bewusst verlustbehaftete Heuristik für Platzhalter-Nullen
// aus dem Quellsystem und würde einen Anbieter direkt am Schnittpunkt von
// Äquator und Nullmeridian stillschweigend verwerfen.
func HasLocation(lat, lon float64) bool {
	return !(math.Abs(lat) <= 0.001 && math.Abs(lon) <= 0.001)
}

// ApprovedWithLocation liest alle Provider-Zeilen, normalisiert sie und
// behält nur freigegebene Einträge mit brauchbaren Koordinaten. Ein
// Store-Fehler ergibt die leere Liste.
func (s *ProviderService) ApprovedWithLocation() []MapProvider {
	var rows []models.Provider
	if err := s.DB.Order("id ASC").Find(&rows).Error; err != nil {
		s.Logger.Error("Provider query failed", zap.Error(err))
		return []MapProvider{}
	}
	result := make([]MapProvider, 0, len(rows))
	for _, row := range rows {
		p := Normalize(row)
		if !p.Approved || !HasLocation(p.Latitude, p.Longitude) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// MapProviders liefert die gefilterte Liste und reichert die ersten
// BatchSize Einträge nebenläufig mit Places-Details an. Schlägt das
// Enrichment für einen Eintrag fehl, bleibt der unangereicherte Eintrag
// erhalten.
func (s *ProviderService) MapProviders(ctx context.Context) []MapProvider {
	result := s.ApprovedWithLocation()
	if s.Places == nil || len(result) == 0 {
		return result
	}

	batch := s.BatchSize
	if batch > len(result) {
		batch = len(result)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < batch; i++ {
		g.Go(func() error {
			if err := s.enrich(gctx, &result[i]); err != nil {
				s.Logger.Warn("Provider enrichment failed, keeping bare record",
					zap.Uint("provider_id", result[i].ID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// enrich füllt PhotoURL und Rating aus der Places-API, mit Redis-Cache
// davor, damit wiederholte Karten-Renderings die Quota nicht leeren.
func (s *ProviderService) enrich(ctx context.Context, p *MapProvider) error {
	query := p.PlaceID
	if query == "" {
		query = strings.TrimSpace(p.Name + " " + p.Address)
	}
	if query == "" {
		return nil
	}
	cacheKey := "places:details:" + query

	if s.Cache != nil {
		if raw, err := s.Cache.Get(ctx, cacheKey).Result(); err == nil {
			var det places.Details
			if json.Unmarshal([]byte(raw), &det) == nil {
				p.PhotoURL = det.PhotoURL
				p.Rating = det.Rating
				return nil
			}
		}
	}

	det, err := s.Places.Details(ctx, query)
	if err != nil {
		return err
	}
	p.PhotoURL = det.PhotoURL
	p.Rating = det.Rating

	if s.Cache != nil {
		if raw, err := json.Marshal(det); err == nil {
			if err := s.Cache.Set(ctx, cacheKey, raw, s.CacheTTL).Err(); err != nil {
				s.Logger.Warn("Failed to cache place details", zap.Error(err))
			}
		}
	}
	return nil
}

// RefreshSnapshot baut den Karten-Snapshot neu auf. Überlappende Refreshes
// können in beliebiger Reihenfolge fertig werden; installiert wird nur das
// Ergebnis des zuletzt gestarteten Refreshs (last request wins), damit nie
// ein veralteter Stand einen neueren überschreibt.
func (s *ProviderService) RefreshSnapshot(ctx context.Context) int {
	s.mu.Lock()
	s.seq++
	token := s.seq
	s.mu.Unlock()

	list := s.MapProviders(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token < s.installed {
		s.Logger.Info("Discarding stale provider snapshot", zap.Uint64("token", token), zap.Uint64("installed", s.installed))
		return len(s.snapshot)
	}
	s.installed = token
	s.snapshot = list
	s.snapshotAt = time.Now()
	return len(list)
}

// Snapshot liefert den zuletzt installierten Karten-Stand.
func (s *ProviderService) Snapshot() ([]MapProvider, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.snapshotAt, s.snapshot != nil
}
