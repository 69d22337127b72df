package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hbot-hub/config"
	"hbot-hub/models"
	"hbot-hub/providers/airtable"
	"hbot-hub/providers/places"
	"hbot-hub/services"
	"hbot-hub/storage"

	s3client "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var authHTTPClient = &http.Client{Timeout: 15 * time.Second}

var (
	providerSubmissionsCounter prometheus.Counter
	newsletterSignupsCounter   prometheus.Counter
	snapshotRefreshCounter     prometheus.Counter
)

func init() {
	providerSubmissionsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_submissions_total",
			Help: "Total number of provider directory submissions received.",
		},
	)
	newsletterSignupsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newsletter_signups_total",
			Help: "Total number of newsletter subscriptions created.",
		},
	)
	snapshotRefreshCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_map_refreshes_total",
			Help: "Total number of provider map snapshot refreshes.",
		},
	)
	prometheus.MustRegister(providerSubmissionsCounter, newsletterSignupsCounter, snapshotRefreshCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// jwtAuthMiddleware prüft das Bearer-Token des Auth-Providers und legt die
// Profil-UUID (Subject) in den Kontext. Owner-Schreibzugriffe laufen nur
// über diese Identität, Admin-Zugriffe über den API-Key.
func jwtAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.JWTSecret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: auth is not configured"})
			return
		}
		tokenStr, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: missing bearer token"})
			return
		}
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: invalid token"})
			return
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: token has no subject"})
			return
		}
		// Subject muss die Profil-UUID des Auth-Providers sein.
		if _, err := uuid.Parse(sub); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: subject is not a profile id"})
			return
		}
		c.Set("profile_id", sub)
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to content database.")

	// Auto-Migration
	if gin.Mode() == gin.DebugMode {
		logging.Info("Debug mode detected. Dropping tables for fresh start.")
		db.Migrator().DropTable(
			&models.FAQ{}, &models.Document{}, &models.Study{},
			&models.CategoryCondition{}, &models.Category{}, &models.Condition{},
			&models.ChamberProduct{}, &models.Provider{},
			&models.NewsletterSubscription{}, &models.Profile{},
		)
	}
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Profile{},
		&models.Condition{}, &models.Category{}, &models.CategoryCondition{},
		&models.Study{}, &models.FAQ{}, &models.Document{},
		&models.ChamberProduct{}, &models.Provider{},
		&models.NewsletterSubscription{},
	)

	// Seeding
	seedDefaultCatalog(db, logging)

	// Setup external fetchers
	contentFetcher := airtable.NewFetcher(cfg, logging)
	var placesFetcher *places.Fetcher
	if cfg.PlacesAPIKey != "" {
		placesFetcher = places.NewFetcher(cfg, logging)
	} else {
		logging.Warn("PLACES_API_KEY not set, provider enrichment disabled")
	}

	// Optionaler Redis-Cache für Place-Details
	redisClient, err := storage.NewRedisClient(cfg)
	if err != nil {
		logging.Fatal("Redis connection failed", zap.Error(err))
	}
	if redisClient != nil {
		logging.Info("Place details cache connected", zap.String("addr", cfg.RedisAddr))
	}

	// Optionaler Object Store für Bild-Uploads
	var s3Client *s3client.Client
	if cfg.S3Enabled() {
		s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
	} else {
		logging.Warn("Object store not configured, image uploads disabled")
	}

	// Setup Services
	articleService := services.NewArticleService(db, logging)
	catalogService := services.NewCatalogService(db, logging, articleService)
	providerService := services.NewProviderService(db, logging, placesFetcher, redisClient,
		cfg.EnrichmentBatchSize, time.Duration(cfg.EnrichmentCacheHours)*time.Hour)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Setup Routes
	setupCategoryRoutes(router, cfg, catalogService, logging)
	setupConditionRoutes(router, cfg, db, logging)
	setupArticleRoutes(router, cfg, db, articleService, logging)
	setupChamberRoutes(router, cfg, db, s3Client, logging)
	setupProviderRoutes(router, cfg, db, providerService, placesFetcher, logging)
	setupNewsletterRoutes(router, db, logging)
	setupProfileRoutes(router, cfg, db, logging)
	setupGuideRoutes(router, contentFetcher, logging)
	setupAuthRoutes(router, cfg, logging)

	// Setup Cron: Karten-Snapshot periodisch auffrischen, damit die ersten
	// Map-Renderings nach einem Deploy nicht auf die Places-API warten.
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled provider snapshot refresh...")
		count := providerService.RefreshSnapshot(context.Background())
		snapshotRefreshCounter.Inc()
		logging.Info("Snapshot refresh completed", zap.Int("providers", count))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupCategoryRoutes(router *gin.Engine, cfg *config.Config, catalog *services.CatalogService, log *zap.Logger) {
	rg := router.Group("/categories")

	// Der Baum, den alle Research-Seiten konsumieren. Leerer Baum ist ein
	// gültiges "nichts anzuzeigen", nie ein Fehler.
	rg.GET("/tree", func(c *gin.Context) {
		c.JSON(http.StatusOK, catalog.CategoryTree())
	})

	admin := rg.Group("", apiKeyAuthMiddleware(cfg))

	admin.POST("/", func(c *gin.Context) {
		var cat models.Category
		if err := c.ShouldBindJSON(&cat); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := catalog.DB.Create(&cat).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create category"})
			return
		}
		c.JSON(http.StatusCreated, cat)
	})

	// Verknüpft eine bestehende Condition mit einer Kategorie.
	admin.POST("/:id/conditions", func(c *gin.Context) {
		categoryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
			return
		}
		var req struct {
			ConditionID uint `json:"condition_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "condition_id required"})
			return
		}
		join := models.CategoryCondition{CategoryID: uint(categoryID), ConditionID: req.ConditionID}
		if err := catalog.DB.Create(&join).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link condition"})
			return
		}
		c.JSON(http.StatusCreated, join)
	})

	// Import aus Legacy-Sheet-Dumps: Payload ist dekodiertes JSON beliebiger
	// Herkunft, wird koerziert und idempotent eingespielt.
	admin.POST("/import", func(c *gin.Context) {
		var payload any
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid JSON body"})
			return
		}
		rows, err := catalog.DecodeCategoryRows(payload)
		if err != nil {
			var shapeErr *services.ShapeError
			if errors.As(err, &shapeErr) {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "payload must be a list of rows"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "import failed"})
			return
		}
		linked, err := catalog.ImportRows(rows)
		if err != nil {
			log.Error("Catalog import failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "import failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("%d links imported", linked), "rows": len(rows)})
	})
}

func setupConditionRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/conditions")

	rg.GET("/", func(c *gin.Context) {
		var conditions []models.Condition
		if err := db.Order("name ASC").Find(&conditions).Error; err != nil {
			log.Error("Condition query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, conditions)
	})

	rg.POST("/", apiKeyAuthMiddleware(cfg), func(c *gin.Context) {
		var cond models.Condition
		if err := c.ShouldBindJSON(&cond); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&cond).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create condition"})
			return
		}
		c.JSON(http.StatusCreated, cond)
	})
}

func setupArticleRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, articles *services.ArticleService, log *zap.Logger) {
	rg := router.Group("/articles")

	// Listen degradieren zur leeren Antwort, der Service loggt den Fehler.
	rg.GET("/", func(c *gin.Context) {
		conditionID, err := strconv.ParseUint(c.Query("condition_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "condition_id query parameter required"})
			return
		}
		c.JSON(http.StatusOK, articles.ByCondition(uint(conditionID)))
	})

	rg.GET("/latest", func(c *gin.Context) {
		limit := parseLimit(c.Query("limit"), 10)
		c.JSON(http.StatusOK, articles.Latest(limit, parseIDList(c.Query("conditions"))))
	})

	rg.GET("/random", func(c *gin.Context) {
		limit := parseLimit(c.Query("limit"), 6)
		c.JSON(http.StatusOK, articles.Random(limit, parseIDList(c.Query("conditions"))))
	})

	rg.GET("/counts", func(c *gin.Context) {
		c.JSON(http.StatusOK, articles.CountsByCondition())
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
			return
		}
		view, err := articles.Get(uint(id))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			log.Error("DB error fetching article", zap.Uint64("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, view)
	})

	rg.GET("/:id/faqs", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
			return
		}
		var faqs []models.FAQ
		if err := db.Where("study_id = ?", id).Order("id ASC").Find(&faqs).Error; err != nil {
			log.Error("FAQ query failed", zap.Uint64("study_id", id), zap.Error(err))
			c.JSON(http.StatusOK, []models.FAQ{})
			return
		}
		c.JSON(http.StatusOK, faqs)
	})

	rg.POST("/", apiKeyAuthMiddleware(cfg), func(c *gin.Context) {
		var study models.Study
		if err := c.ShouldBindJSON(&study); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if study.OutcomeRating != nil && !validOutcomeRating(*study.OutcomeRating) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "outcome_rating must be one of Positive, Neutral, Negative, N/A"})
			return
		}
		if err := db.Create(&study).Error; err != nil {
			log.Error("Failed to create study", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create article"})
			return
		}
		c.JSON(http.StatusCreated, study)
	})
}

func validOutcomeRating(r string) bool {
	switch r {
	case models.OutcomePositive, models.OutcomeNeutral, models.OutcomeNegative, models.OutcomeNA:
		return true
	}
	return false
}

func setupChamberRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, s3Client *s3client.Client, log *zap.Logger) {
	rg := router.Group("/chambers")

	rg.GET("/", func(c *gin.Context) {
		query := db.Model(&models.ChamberProduct{}).Order("name ASC")
		if t := c.Query("type"); t != "" {
			query = query.Where("type = ?", t)
		}
		var chambers []models.ChamberProduct
		if err := query.Find(&chambers).Error; err != nil {
			log.Error("Chamber query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, chambers)
	})

	rg.GET("/:slug", func(c *gin.Context) {
		slug := c.Param("slug")
		var chamber models.ChamberProduct
		if err := db.Where("slug = ?", slug).First(&chamber).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "chamber not found"})
				return
			}
			log.Error("DB error fetching chamber", zap.String("slug", slug), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, chamber)
	})

	admin := rg.Group("", apiKeyAuthMiddleware(cfg))

	admin.POST("/", func(c *gin.Context) {
		var chamber models.ChamberProduct
		if err := c.ShouldBindJSON(&chamber); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := db.Create(&chamber).Error; err != nil {
			log.Error("Failed to create chamber", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chamber"})
			return
		}
		c.JSON(http.StatusCreated, chamber)
	})

	// Bild-Upload in den Object Store; die URL landet im images-Array.
	admin.POST("/:slug/images", func(c *gin.Context) {
		if s3Client == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object store not configured"})
			return
		}
		slug := c.Param("slug")
		var chamber models.ChamberProduct
		if err := db.Where("slug = ?", slug).First(&chamber).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "chamber not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		fileHeader, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
			return
		}

		key := fmt.Sprintf("chambers/%s/%d-%s", slug, time.Now().Unix(), fileHeader.Filename)
		imageURL, err := storage.UploadImage(c.Request.Context(), s3Client, cfg, key, data, fileHeader.Header.Get("Content-Type"))
		if err != nil {
			log.Error("Image upload failed", zap.String("slug", slug), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}

		var images []string
		if len(chamber.Images) > 0 {
			_ = json.Unmarshal(chamber.Images, &images)
		}
		images = append(images, imageURL)
		raw, _ := json.Marshal(images)
		if err := db.Model(&chamber).Update("images", raw).Error; err != nil {
			log.Error("Failed to persist image URL", zap.String("slug", slug), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save image"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "url": imageURL})
	})
}

func setupProviderRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, providerService *services.ProviderService, placesFetcher *places.Fetcher, log *zap.Logger) {
	rg := router.Group("/providers")

	// Karten-Liste: bedient aus dem Snapshot; beim Kaltstart wird synchron
	// aufgefrischt.
	rg.GET("/map", func(c *gin.Context) {
		list, refreshedAt, ok := providerService.Snapshot()
		if !ok {
			providerService.RefreshSnapshot(c.Request.Context())
			snapshotRefreshCounter.Inc()
			list, refreshedAt, _ = providerService.Snapshot()
		}
		if list == nil {
			list = []services.MapProvider{}
		}
		c.JSON(http.StatusOK, gin.H{"providers": list, "refreshed_at": refreshedAt})
	})

	// Serverseitige Places-Proxies, damit Key und Quota nicht im Client liegen.
	rg.GET("/geocode", func(c *gin.Context) {
		if placesFetcher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "places api not configured"})
			return
		}
		address := c.Query("address")
		if address == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "address query parameter required"})
			return
		}
		lat, lng, err := placesFetcher.Geocode(c.Request.Context(), address)
		if err != nil {
			log.Error("Geocode failed", zap.String("address", address), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "geocode failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"latitude": lat, "longitude": lng})
	})

	rg.GET("/nearby", func(c *gin.Context) {
		if placesFetcher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "places api not configured"})
			return
		}
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters required"})
			return
		}
		radius := parseLimit(c.Query("radius"), 25000)
		found, err := placesFetcher.Nearby(c.Request.Context(), lat, lng, radius)
		if err != nil {
			log.Error("Nearby search failed", zap.Error(err))
			c.JSON(http.StatusOK, []places.Place{})
			return
		}
		c.JSON(http.StatusOK, found)
	})

	// Öffentliche Selbst-Einreichung: landet immer unfreigegeben im Verzeichnis.
	rg.POST("/", func(c *gin.Context) {
		var req struct {
			Name         string         `json:"name" binding:"required,min=2"`
			Address      string         `json:"address" binding:"required"`
			City         string         `json:"city"`
			Country      string         `json:"country"`
			Phone        string         `json:"phone"`
			Email        string         `json:"email" binding:"omitempty,email"`
			Website      string         `json:"website"`
			Latitude     any            `json:"latitude"`
			Longitude    any            `json:"longitude"`
			Hours        map[string]any `json:"hours"`
			ChamberSpecs map[string]any `json:"chamber_specs"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "name and address are required"})
			return
		}

		lat := services.CoerceCoordinate(req.Latitude)
		lng := services.CoerceCoordinate(req.Longitude)
		// Ohne brauchbare Koordinaten wird die Adresse serverseitig geocodiert.
		if !services.HasLocation(lat, lng) && placesFetcher != nil {
			glat, glng, err := placesFetcher.Geocode(c.Request.Context(), req.Address)
			if err != nil {
				log.Warn("Geocoding submitted provider failed", zap.String("address", req.Address), zap.Error(err))
			} else {
				lat, lng = glat, glng
			}
		}

		provider := models.Provider{
			Name:      req.Name,
			Address:   req.Address,
			City:      req.City,
			Country:   req.Country,
			Phone:     req.Phone,
			Email:     req.Email,
			Website:   req.Website,
			Approved:  "false",
			Latitude:  strconv.FormatFloat(lat, 'f', -1, 64),
			Longitude: strconv.FormatFloat(lng, 'f', -1, 64),
		}
		if req.Hours != nil {
			provider.Hours, _ = json.Marshal(req.Hours)
		}
		if req.ChamberSpecs != nil {
			provider.ChamberSpecs, _ = json.Marshal(req.ChamberSpecs)
		}

		if err := db.Create(&provider).Error; err != nil {
			log.Error("Failed to save provider submission", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to save submission"})
			return
		}
		providerSubmissionsCounter.Inc()
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "submission received, pending approval", "id": provider.ID})
	})

	admin := rg.Group("", apiKeyAuthMiddleware(cfg))

	admin.GET("/", func(c *gin.Context) {
		var all []models.Provider
		if err := db.Order("id ASC").Find(&all).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, all)
	})

	admin.PATCH("/:id/approve", func(c *gin.Context) {
		id := c.Param("id")
		res := db.Model(&models.Provider{}).Where("id = ?", id).Update("approved", "true")
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "provider approved"})
	})

	admin.POST("/refresh", func(c *gin.Context) {
		count := providerService.RefreshSnapshot(c.Request.Context())
		snapshotRefreshCounter.Inc()
		c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("snapshot refreshed with %d providers", count)})
	})
}

func setupNewsletterRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/newsletter")

	rg.POST("/", func(c *gin.Context) {
		var req struct {
			Email     string  `json:"email" binding:"required,email"`
			ProfileID *string `json:"profile_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "a valid email is required"})
			return
		}
		sub := models.NewsletterSubscription{
			Email:     strings.ToLower(strings.TrimSpace(req.Email)),
			ProfileID: req.ProfileID,
		}
		if err := db.Create(&sub).Error; err != nil {
			// Doppelte Anmeldung ist aus Nutzersicht ein Erfolg.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusOK, gin.H{"success": true, "message": "already subscribed"})
				return
			}
			log.Error("Failed to save newsletter subscription", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "subscription failed, please retry"})
			return
		}
		newsletterSignupsCounter.Inc()
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "subscribed"})
	})
}

func setupProfileRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/profiles")

	me := rg.Group("/me", jwtAuthMiddleware(cfg))

	// Profile entstehen implizit beim ersten Zugriff nach Auth-Signup.
	me.GET("", func(c *gin.Context) {
		profileID := c.GetString("profile_id")
		var profile models.Profile
		if err := db.Where(models.Profile{ID: profileID}).FirstOrCreate(&profile).Error; err != nil {
			log.Error("Failed to load profile", zap.String("profile_id", profileID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, profile)
	})

	me.PUT("", func(c *gin.Context) {
		profileID := c.GetString("profile_id")
		var req struct {
			Username      *string `json:"username"`
			Email         *string `json:"email" binding:"omitempty,email"`
			FullName      *string `json:"full_name"`
			AvatarURL     *string `json:"avatar_url"`
			Website       *string `json:"website"`
			Location      *string `json:"location"`
			Company       *string `json:"company"`
			SavedArticles []uint  `json:"saved_articles"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
			return
		}
		if req.Username != nil && len(strings.TrimSpace(*req.Username)) < 3 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "username must be at least 3 characters"})
			return
		}

		updates := map[string]interface{}{}
		if req.Username != nil {
			updates["username"] = strings.TrimSpace(*req.Username)
		}
		if req.Email != nil {
			updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
		}
		if req.FullName != nil {
			updates["full_name"] = *req.FullName
		}
		if req.AvatarURL != nil {
			updates["avatar_url"] = *req.AvatarURL
		}
		if req.Website != nil {
			updates["website"] = *req.Website
		}
		if req.Location != nil {
			updates["location"] = *req.Location
		}
		if req.Company != nil {
			updates["company"] = *req.Company
		}
		if req.SavedArticles != nil {
			raw, _ := json.Marshal(req.SavedArticles)
			updates["saved_articles"] = raw
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "no updatable fields provided"})
			return
		}

		if err := db.Model(&models.Profile{}).Where("id = ?", profileID).Updates(updates).Error; err != nil {
			log.Error("Failed to update profile", zap.String("profile_id", profileID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "profile updated"})
	})

	// Admin-Lesezugriff auf beliebige Profile.
	rg.GET("/:id", apiKeyAuthMiddleware(cfg), func(c *gin.Context) {
		var profile models.Profile
		if err := db.First(&profile, "id = ?", c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, profile)
	})
}

func setupGuideRoutes(router *gin.Engine, fetcher *airtable.Fetcher, log *zap.Logger) {
	// Guides und Blog kommen aus der tabellarischen Content-API und
	// degradieren bei Fehlern zur leeren Liste.
	serveView := func(table, view string) gin.HandlerFunc {
		return func(c *gin.Context) {
			records, err := fetcher.FetchView(c.Request.Context(), table, view)
			if err != nil {
				log.Error("Content fetch failed", zap.String("table", table), zap.Error(err))
				c.JSON(http.StatusOK, []airtable.Record{})
				return
			}
			c.JSON(http.StatusOK, records)
		}
	}

	router.GET("/guides", serveView("Guides", "Published"))
	router.GET("/blog", serveView("Blog", "Published"))
}

func setupAuthRoutes(router *gin.Engine, cfg *config.Config, log *zap.Logger) {
	// Auth-Callback: Code gegen Session tauschen und zurück zur App leiten.
	router.GET("/auth/callback", func(c *gin.Context) {
		code := c.Query("code")
		if code == "" || cfg.AuthTokenURL == "" {
			c.Redirect(http.StatusFound, cfg.AuthRedirectURL)
			return
		}

		resp, err := authHTTPClient.PostForm(cfg.AuthTokenURL, url.Values{
			"grant_type": {"authorization_code"},
			"code":       {code},
		})
		if err != nil {
			log.Error("Auth code exchange failed", zap.Error(err))
			c.Redirect(http.StatusFound, cfg.AuthRedirectURL)
			return
		}
		defer resp.Body.Close()

		var tokenResp struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil || tokenResp.AccessToken == "" {
			log.Error("Auth token response invalid", zap.Error(err))
			c.Redirect(http.StatusFound, cfg.AuthRedirectURL)
			return
		}

		maxAge := tokenResp.ExpiresIn
		if maxAge <= 0 {
			maxAge = 3600
		}
		c.SetCookie("session", tokenResp.AccessToken, maxAge, "/", "", true, true)

		// Nur relative Redirect-Ziele akzeptieren.
		target := c.Query("redirect_to")
		if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
			target = cfg.AuthRedirectURL
		}
		c.Redirect(http.StatusFound, target)
	})
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// parseIDList zerlegt eine komma-separierte ID-Liste ("3,7,12").
// Unparsebare Einträge werden verworfen.
func parseIDList(csv string) []uint {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(n))
	}
	return ids
}

func seedDefaultCatalog(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.Category{}).Count(&count)
	if count > 0 {
		return
	}

	catalog := []struct {
		Category   string
		Conditions []string
	}{
		{"Neurological", []string{"Stroke", "Traumatic Brain Injury", "Cerebral Palsy"}},
		{"Wound Care", []string{"Diabetic Foot Ulcer", "Radiation Injury"}},
		{"Performance", []string{"Athletic Recovery"}},
	}

	for _, entry := range catalog {
		cat := models.Category{Name: entry.Category}
		if err := db.Create(&cat).Error; err != nil {
			logger.Warn("Failed to seed category", zap.String("category", entry.Category), zap.Error(err))
			continue
		}
		for _, conditionName := range entry.Conditions {
			var cond models.Condition
			if err := db.Where(models.Condition{Name: conditionName}).FirstOrCreate(&cond).Error; err != nil {
				logger.Warn("Failed to seed condition", zap.String("condition", conditionName), zap.Error(err))
				continue
			}
			join := models.CategoryCondition{CategoryID: cat.ID, ConditionID: cond.ID}
			if err := db.Create(&join).Error; err != nil {
				logger.Warn("Failed to seed category link", zap.Error(err))
			}
		}
	}
	logger.Info("Default catalog seeded.")
}
