package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/", func(c *gin.Context) {
		_, hasDeadline := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": hasDeadline, "rid": c.GetString(RequestIDHeader)})
	})
	return r
}

func serve(r http.Handler, header map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminKey(t *testing.T) {
	r := newEngine(AdminKey("secret"))

	assert.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, map[string]string{"X-Admin-Key": "nope"}).Code)
	assert.Equal(t, http.StatusOK, serve(r, map[string]string{"X-Admin-Key": "secret"}).Code)

	open := newEngine(AdminKey(""))
	assert.Equal(t, http.StatusOK, serve(open, nil).Code)
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	w := serve(r, nil)
	assert.True(t, strings.HasPrefix(w.Header().Get(RequestIDHeader), "req_"))

	w = serve(r, map[string]string{RequestIDHeader: "given"})
	assert.Equal(t, "given", w.Header().Get(RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"rid":"given"`)
}

func TestTimeout(t *testing.T) {
	w := serve(newEngine(Timeout(time.Second)), nil)
	assert.Contains(t, w.Body.String(), `"deadline":true`)

	w = serve(newEngine(Timeout(0)), nil)
	assert.Contains(t, w.Body.String(), `"deadline":false`)
}
