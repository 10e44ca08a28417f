package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Login_Success(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/v1/auth/login", `{"username":"ana","password":"secret123"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "ana", resp["username"])
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestAuthHandler_Login_NormalizesUsername(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/v1/auth/login", `{"username":"  ANA ","password":"secret123"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ana", resp["username"])
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/v1/auth/login", `{"username":"ana","password":"wrong"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CREDENTIALS", resp["code"])
}

func TestAuthHandler_Login_UnknownUser(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/v1/auth/login", `{"username":"nobody","password":"secret123"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Login_InvalidBody(t *testing.T) {
	f := newRouterFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: `{}`},
		{name: "missing password", body: `{"username":"ana"}`},
		{name: "not json", body: `username=ana`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/auth/login", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuthHandler_Status(t *testing.T) {
	f := newRouterFixture(t)

	// Unauthenticated
	w := f.do(t, http.MethodGet, "/v1/auth/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["authenticated"])

	// Authenticated
	cookies := f.login(t)
	w = f.do(t, http.MethodGet, "/v1/auth/status", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	resp = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["authenticated"])
	assert.Equal(t, "ana", resp["username"])
}

func TestAuthHandler_Logout_ClearsSession(t *testing.T) {
	f := newRouterFixture(t)
	f.seedQuestions(t, testQuestion("q1", 1, "cardiology"))
	cookies := f.login(t)

	w := f.do(t, http.MethodPost, "/v1/auth/logout", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	// The logout response carries the cleared cookie; requests using it
	// must no longer be authenticated.
	cleared := w.Result().Cookies()
	w = f.do(t, http.MethodGet, "/v1/quiz/question", "", cleared)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_BlocksAnonymous(t *testing.T) {
	f := newRouterFixture(t)

	paths := []string{
		"/v1/quiz/question",
		"/v1/quiz/topics",
		"/v1/stats",
		"/v1/stats/history",
	}
	for _, path := range paths {
		w := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "path %s", path)
	}
}
