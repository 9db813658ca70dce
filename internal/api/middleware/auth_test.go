package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func authRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BearerAuth(secret))
	r.GET("/probe", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func probe(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearerAuthOpenWhenNoSecret(t *testing.T) {
	r := authRouter("")
	assert.Equal(t, http.StatusOK, probe(r, "").Code)
	// Stray tokens are ignored when no secret is configured.
	assert.Equal(t, http.StatusOK, probe(r, "Bearer whatever").Code)
}

func TestBearerAuthAcceptsCorrectToken(t *testing.T) {
	r := authRouter("s3cret")
	assert.Equal(t, http.StatusOK, probe(r, "Bearer s3cret").Code)
}

func TestBearerAuthRejects(t *testing.T) {
	r := authRouter("s3cret")

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer nope"},
		{"wrong token same length", "Bearer s3cre7"},
		{"no scheme", "s3cret"},
		{"wrong scheme", "Basic s3cret"},
		{"empty token", "Bearer "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := probe(r, tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
		})
	}
}
