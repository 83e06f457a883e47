/*
Copyright 2024 Taqo Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffraaz/taqo/config"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.MockConfig(&config.Configuration{Server: config.ServerConfig{SecretKey: "test-secret"}})

	router := gin.New()
	router.Use(AuthMiddleware())
	router.POST("/reserve_spot", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})
	return router
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	router := newAuthRouter(t)
	token, err := SignIDToken("user_1", "test-secret", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/reserve_spot", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "user_1", resp.Body.String())
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	router := newAuthRouter(t)

	req := httptest.NewRequest("POST", "/reserve_spot", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Log in to perform this action.", resp.Body.String())
}

func TestAuthMiddlewareRejectsForgedToken(t *testing.T) {
	router := newAuthRouter(t)
	token, err := SignIDToken("user_1", "wrong-secret", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/reserve_spot", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	router := newAuthRouter(t)
	token, err := SignIDToken("user_1", "test-secret", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/reserve_spot", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
