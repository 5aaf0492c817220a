package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	RegisterHealth(g, nil)

	w := get(g, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", w.Body.String())

	w = get(g, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady_ReportsDeps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := map[string]bool{"config": true, "storage": false}
	g := gin.New()
	RegisterHealth(g, func() map[string]bool { return deps })

	w := get(g, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var out struct {
		Status string          `json:"status"`
		Deps   map[string]bool `json:"deps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "not_ready", out.Status)
	assert.Equal(t, deps, out.Deps)

	deps["storage"] = true
	w = get(g, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ready"`)
}
