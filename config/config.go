package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4280"`

	// Admin-API-Key für Schreibzugriffe (leer = offen, nur für lokale Entwicklung)
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// JWT für Profil-Endpunkte (Subject = Profil-UUID des Auth-Providers)
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Auth-Callback: Code-Exchange gegen den Auth-Provider
	AuthTokenURL    string `envconfig:"AUTH_TOKEN_URL"`
	AuthRedirectURL string `envconfig:"AUTH_REDIRECT_URL" default:"/"`

	// Tabellarische Content-API (Guides & Blog)
	ContentAPIBaseURL string `envconfig:"CONTENT_API_BASE_URL" default:"https://api.airtable.com/v0"`
	ContentAPIKey     string `envconfig:"CONTENT_API_KEY"`
	ContentBaseID     string `envconfig:"CONTENT_BASE_ID"`
	ContentMaxRecords int    `envconfig:"CONTENT_MAX_RECORDS" default:"100"`

	// Places-API für Provider-Enrichment (Fotos, Details, Geocoding)
	PlacesBaseURL        string `envconfig:"PLACES_BASE_URL" default:"https://maps.googleapis.com/maps/api"`
	PlacesAPIKey         string `envconfig:"PLACES_API_KEY"`
	EnrichmentBatchSize  int    `envconfig:"ENRICHMENT_BATCH_SIZE" default:"12"`
	EnrichmentCacheHours int    `envconfig:"ENRICHMENT_CACHE_HOURS" default:"24"`

	// Optionaler Redis-Cache für Place-Details (Quota-Schutz)
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"*/30 * * * *"`

	// S3-kompatibler Object Store für Chamber-/Provider-Bilder
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"eu-central-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// S3Enabled meldet, ob der Object Store konfiguriert ist.
func (c *Config) S3Enabled() bool {
	return c.S3Key != "" && c.S3Secret != "" && c.S3URL != "" && c.S3Bucket != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
