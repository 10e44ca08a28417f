package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/services"
	"examprep/internal/store"
)

const (
	testUsername = "ana"
	testPassword = "secret123"
)

type routerFixture struct {
	router *gin.Engine
	store  *store.MemoryStore
	cfg    *config.Config
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := services.HashPassword(testPassword)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{
			SessionSecret: "test-session-secret",
			CORSOrigins:   []string{"http://localhost:3000"},
		},
		Selector: config.SelectorConfig{
			DefaultMode: "adaptive",
			BatchSize:   5,
		},
		OpenTelemetry: config.OpenTelemetryConfig{
			ServiceName:   "examprep-test",
			EnableLogging: false,
		},
		Auth: config.AuthConfig{
			Users: []config.UserCredential{{Username: testUsername, PasswordHash: hash}},
		},
		IsTest: true,
	}

	logger := observability.NewLogger(&cfg.OpenTelemetry)
	memStore := store.NewMemoryStore()
	ledger := services.NewLedgerService(memStore, logger)
	selector := services.NewSelectorServiceWithSeed(memStore, logger, 42)
	stats := services.NewStatsService(memStore, logger)
	users := services.NewUserService(cfg, logger)

	router := NewRouter(cfg, users, ledger, selector, stats, memStore, logger)
	return &routerFixture{router: router, store: memStore, cfg: cfg}
}

func (f *routerFixture) seedQuestions(t *testing.T, questions ...*models.Question) {
	t.Helper()
	_, err := f.store.UpsertQuestions(context.Background(), questions)
	require.NoError(t, err)
}

func testQuestion(id string, number int, topic string) *models.Question {
	return &models.Question{
		ID:     id,
		Number: number,
		Topic:  topic,
		Text:   "Question " + id,
		Options: []models.AnswerOption{
			{Letter: "A", Text: "first"},
			{Letter: "B", Text: "second"},
			{Letter: "C", Text: "third"},
		},
		CorrectAnswer: "A",
		Explanation:   "A is correct",
		SourceFile:    "seed.json",
		SourceType:    "test",
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

// do issues a request against the fixture router, attaching any session
// cookies from a prior login.
func (f *routerFixture) do(t *testing.T, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// login authenticates the fixture user and returns the session cookies.
func (f *routerFixture) login(t *testing.T) []*http.Cookie {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/auth/login", `{"username":"`+testUsername+`","password":"`+testPassword+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}
