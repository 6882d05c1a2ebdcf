package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	appidentity "github.com/apiplatform/backend/internal/application/identity"
	"github.com/apiplatform/backend/internal/infrastructure/auth"
	"github.com/apiplatform/backend/internal/infrastructure/config"
	"github.com/apiplatform/backend/internal/infrastructure/persistence"
	"github.com/apiplatform/backend/internal/infrastructure/persistence/models"
	"github.com/apiplatform/backend/internal/interfaces/http/dto"
	"github.com/apiplatform/backend/internal/interfaces/http/handler"
	"github.com/apiplatform/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserModel{}))

	userRepo := persistence.NewGormUserRepository(db)
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:     "test-secret-that-is-long-enough!",
		Expiration: time.Hour,
		Issuer:     "test",
	})
	authHandler := handler.NewAuthHandler(appidentity.NewAuthService(userRepo, jwtService))

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.POST("/api/v1/auth/register", authHandler.Register)
	engine.POST("/api/v1/auth/login", authHandler.Login)
	engine.GET("/api/v1/me", middleware.JWTAuth(jwtService), authHandler.Me)
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_RegisterLoginMe(t *testing.T) {
	engine := setupAuthRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":    "alice@example.com",
		"password": "correct horse battery",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w = doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "correct horse battery",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool            `json:"success"`
		Data    dto.SessionView `json:"data"`
		Error   json.RawMessage `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Data.Token)
	assert.Equal(t, "alice@example.com", resp.Data.User.Email)
	assert.Equal(t, "client", resp.Data.User.Role)

	w = doJSON(t, engine, http.MethodGet, "/api/v1/me", nil, resp.Data.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestAuthHandler_LoginFailuresAreIndistinguishable(t *testing.T) {
	engine := setupAuthRouter(t)

	doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":    "bob@example.com",
		"password": "super secret pw",
	}, "")

	wrongPassword := doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "bob@example.com",
		"password": "wrong password!",
	}, "")
	unknownEmail := doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "nobody@example.com",
		"password": "wrong password!",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.JSONEq(t, stripRequestID(t, wrongPassword.Body.Bytes()), stripRequestID(t, unknownEmail.Body.Bytes()))
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	engine := setupAuthRouter(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing email", gin.H{"password": "long enough pw"}},
		{"bad email", gin.H{"email": "not-an-email", "password": "long enough pw"}},
		{"short password", gin.H{"email": "a@example.com", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", tt.body, "")
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
		})
	}
}

func TestAuthHandler_DuplicateEmail(t *testing.T) {
	engine := setupAuthRouter(t)

	body := gin.H{"email": "carol@example.com", "password": "long enough pw"}
	first := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", body, "")
	second := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", body, "")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestAuthHandler_MeRequiresToken(t *testing.T) {
	engine := setupAuthRouter(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// stripRequestID removes the per-request correlation ID so two error bodies
// can be compared structurally.
func stripRequestID(t *testing.T, raw []byte) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(raw, &resp))
	if errInfo, ok := resp["error"].(map[string]any); ok {
		delete(errInfo, "request_id")
	}
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(out)
}
