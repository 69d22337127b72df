package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hbot-hub/models"
)

func newNewsletterRouter(t *testing.T) *gin.Engine {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.NewsletterSubscription{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	setupNewsletterRoutes(router, db, zap.NewNop())
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func TestNewsletterSubscribe(t *testing.T) {
	router := newNewsletterRouter(t)

	rec := postJSON(router, "/newsletter/", `{"email":"diver@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d %s", rec.Code, rec.Body.String())
	}
}

func TestNewsletterSubscribe_DuplicateEmailIsSuccess(t *testing.T) {
	router := newNewsletterRouter(t)

	if rec := postJSON(router, "/newsletter/", `{"email":"diver@example.com"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first signup failed: %d %s", rec.Code, rec.Body.String())
	}

	// Zweite Anmeldung derselben Adresse: kein Fehler, sondern OK.
	rec := postJSON(router, "/newsletter/", `{"email":"diver@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate signup not treated as success: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "already subscribed") {
		t.Fatalf("unexpected response body: %s", rec.Body.String())
	}
}

func TestNewsletterSubscribe_RejectsInvalidEmail(t *testing.T) {
	router := newNewsletterRouter(t)

	rec := postJSON(router, "/newsletter/", `{"email":"not-an-email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid email, got %d %s", rec.Code, rec.Body.String())
	}
}
