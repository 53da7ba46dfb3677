package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"deck_dev_v1_202608/internal/service"
)

func performJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newAuthRouter(t *testing.T) http.Handler {
	t.Helper()
	authService, err := service.NewAuthService("admin", "passw0rd")
	if err != nil {
		t.Fatalf("创建认证服务失败: %v", err)
	}
	ctrl := NewAuthController(authService)
	router := setupRouter()
	router.POST("/api/auth/login", ctrl.Login)
	router.POST("/api/auth/refresh", ctrl.Refresh)
	return router
}

func TestLogin_Success(t *testing.T) {
	router := newAuthRouter(t)
	w := performJSON(router, "POST", "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "passw0rd",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, float64(0), resp["code"])

	data := resp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])
	assert.Greater(t, data["expires_in"], float64(0))
}

func TestLogin_BadCredentials(t *testing.T) {
	router := newAuthRouter(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"错误密码", map[string]string{"username": "admin", "password": "wrong"}},
		{"错误用户名", map[string]string{"username": "root", "password": "passw0rd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(router, "POST", "/api/auth/login", tt.body)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router := newAuthRouter(t)
	w := performJSON(router, "POST", "/api/auth/login", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefresh_RoundTrip(t *testing.T) {
	router := newAuthRouter(t)
	w := performJSON(router, "POST", "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "passw0rd",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	refreshToken := resp["data"].(map[string]interface{})["refresh_token"].(string)

	w = performJSON(router, "POST", "/api/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["access_token"])
}

func TestRefresh_InvalidToken(t *testing.T) {
	router := newAuthRouter(t)
	w := performJSON(router, "POST", "/api/auth/refresh", map[string]string{
		"refresh_token": "bogus",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
