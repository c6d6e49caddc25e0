package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutriplan/api/internal/config"
	"nutriplan/api/internal/kv"
	"nutriplan/api/internal/models"
)

func newTestEngine(t *testing.T) (*gin.Engine, *config.AppConfig) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			PBKDF2Iterations: 1000,
			SessionTTL:       24 * time.Hour,
			RememberTTL:      720 * time.Hour,
			ImportToken:      "s3cret-import-token",
		},
		Cache: config.CacheConfig{
			Prefix:     "nutriplan_",
			Version:    "1.0.0",
			DefaultTTL: 24 * time.Hour,
			RatingTTL:  5 * time.Minute,
		},
	}

	recipeList := []models.Recipe{
		{ID: "1", Name: "Overnight Oats", Category: "breakfast"},
		{ID: "2", Name: "Lentil Soup", Category: "lunch"},
	}

	h := NewHandlerSet(zerolog.Nop(), cfg, kv.NewMemoryStore(), kv.NewMemoryStore(), recipeList, nil, nil)

	engine := gin.New()
	h.Routes(engine.Group("/api"))
	return engine, cfg
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func registerAndLogin(t *testing.T, engine *gin.Engine, email string) string {
	t.Helper()

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":     email,
		"password":  "correct horse battery",
		"firstName": "Dana",
		"lastName":  "Reyes",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	return user["id"].(string)
}

func TestRegisterLoginMeFlow(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":     "dana@example.com",
		"password":  "correct horse battery",
		"firstName": "Dana",
		"lastName":  "Reyes",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	payload := decodeBody(t, rec)
	user := payload["user"].(map[string]any)
	assert.Equal(t, "dana@example.com", user["email"])
	assert.NotContains(t, rec.Body.String(), "passwordDigest")
	assert.NotContains(t, rec.Body.String(), "passwordSalt")

	// registering does not log the user in
	rec = doJSON(t, engine, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "dana@example.com",
		"password": "wrong password!",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "incorrect password", decodeBody(t, rec)["error"])

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "dana@example.com",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)
	assert.Equal(t, "dana@example.com", me["user"].(map[string]any)["email"])
	assert.Equal(t, "user", me["effectiveRole"])

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	engine, _ := newTestEngine(t)

	body := gin.H{
		"email":     "dana@example.com",
		"password":  "correct horse battery",
		"firstName": "Dana",
		"lastName":  "Reyes",
	}
	rec := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRatingFlow(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerAndLogin(t, engine, "dana@example.com")

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/recipes/1/ratings", gin.H{
		"rating":  5,
		"comment": "great weeknight dinner",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, false, payload["isUpdate"])
	assert.Equal(t, 5.0, payload["averageRating"])
	assert.Equal(t, 1.0, payload["totalRatings"])

	// out-of-range ratings are rejected before anything is stored
	rec = doJSON(t, engine, http.MethodPost, "/api/v1/recipes/1/ratings", gin.H{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the aggregate is readable without a session
	rec = doJSON(t, engine, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/recipes/1/ratings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	aggregate := decodeBody(t, rec)
	assert.Equal(t, 5.0, aggregate["averageRating"])
	assert.Equal(t, 1.0, aggregate["totalRatings"])

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/ratings/top-rated", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top := decodeBody(t, rec)
	assert.Equal(t, []any{"1"}, top["recipeIds"])
}

func TestPasswordStrengthEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/auth/password-strength", gin.H{
		"password": "Str0ng!Enough",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, "strong", payload["level"])

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/auth/password-strength", gin.H{
		"password": "abc",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weak", decodeBody(t, rec)["level"])
}

func TestSuggestPasswordEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/auth/suggest-password?length=16", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Len(t, payload["password"], 16)

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/auth/suggest-password?length=4", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserRating(t *testing.T) {
	engine, _ := newTestEngine(t)

	userID := registerAndLogin(t, engine, "dana@example.com")
	rec := doJSON(t, engine, http.MethodPost, "/api/v1/recipes/1/ratings", gin.H{"rating": 3})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/recipes/1/ratings/"+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, decodeBody(t, rec)["rating"])

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/recipes/1/ratings/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRatingRequiresSession(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/recipes/1/ratings", gin.H{"rating": 4})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRemoveRatingForbiddenForOtherUser(t *testing.T) {
	engine, _ := newTestEngine(t)

	ownerID := registerAndLogin(t, engine, "owner@example.com")
	rec := doJSON(t, engine, http.MethodPost, "/api/v1/recipes/1/ratings", gin.H{"rating": 4})
	require.Equal(t, http.StatusOK, rec.Code)

	// a plain user cannot delete someone else's rating
	registerAndLogin(t, engine, "other@example.com")
	rec = doJSON(t, engine, http.MethodDelete, "/api/v1/recipes/1/ratings/"+ownerID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the owner can
	rec = doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "owner@example.com",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, engine, http.MethodDelete, "/api/v1/recipes/1/ratings/"+ownerID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, engine, http.MethodDelete, "/api/v1/recipes/1/ratings/"+ownerID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireAdministrator(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerAndLogin(t, engine, "dana@example.com")

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/admin/users/stats", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthReportsMemoryStorage(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := doJSON(t, engine, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "memory", payload["storage"])
}
