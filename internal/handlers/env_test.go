package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yukikurage/retail-tasks/internal/constants"
	"github.com/yukikurage/retail-tasks/internal/metrics"
	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/repository"
	"github.com/yukikurage/retail-tasks/internal/services"
	"github.com/yukikurage/retail-tasks/internal/testutil"
	"github.com/yukikurage/retail-tasks/internal/visibility"
)

const testPassword = "password123"

type testEnv struct {
	t        *testing.T
	db       *gorm.DB
	router   *gin.Engine
	registry *prometheus.Registry
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	userRepo := repository.NewUserRepository(db)
	directory := services.NewDirectoryService(userRepo, repository.NewTeamRepository(db), time.Minute, logger)

	r := gin.New()
	store := cookie.NewStore([]byte("secret"))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))
	RegisterRoutes(r, Services{
		Auth:      services.NewAuthService(userRepo, m, logger).WithHashCost(bcrypt.MinCost),
		Tasks:     services.NewTaskService(repository.NewTaskRepository(db), directory, nil, m, logger, visibility.Options{ReconcileOnRead: true}),
		Directory: directory,
		Gatherer:  registry,
		Logger:    logger,
	})

	return &testEnv{t: t, db: db, router: r, registry: registry}
}

// createUser inserts a user who can log in with testPassword.
func (e *testEnv) createUser(name string, role models.Role, teamID *uint64, mutate func(*models.User)) *models.User {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(e.t, err)

	user := &models.User{
		Name:            name,
		Email:           name + "@retail.test",
		PasswordHash:    string(hash),
		Role:            role,
		TeamID:          teamID,
		PasswordChanged: true,
	}
	if mutate != nil {
		mutate(user)
	}
	require.NoError(e.t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) do(method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// login signs in and returns the session cookies.
func (e *testEnv) login(user *models.User) []*http.Cookie {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    user.Email,
		"password": testPassword,
	}, nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.NotEmpty(e.t, cookies)
	return cookies
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
