package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, h *HealthChecker) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return rec.Code, status
}

func TestHealthChecker_Healthy(t *testing.T) {
	h := NewHealthChecker()
	h.RecordIteration(10000)

	code, status := getHealth(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.FeedHealthy)
	assert.Equal(t, 10000.0, status.LastEquity)
	assert.False(t, status.LastIteration.IsZero())
}

func TestHealthChecker_DegradedOnFeedDown(t *testing.T) {
	h := NewHealthChecker()
	h.SetFeedHealthy(false)

	code, status := getHealth(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", status.Status)
}

func TestHealthChecker_DegradedOnOpenBreakers(t *testing.T) {
	h := NewHealthChecker()
	h.SetOpenBreakers([]string{"market_data"})

	code, status := getHealth(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, []string{"market_data"}, status.OpenBreakers)
}

func TestHealthChecker_UnhealthyOnErrors(t *testing.T) {
	h := NewHealthChecker()
	h.AddError("excel export failed")

	code, status := getHealth(t, h)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Errors, "excel export failed")

	h.ClearErrors()
	code, status = getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
}

func TestHealthChecker_ErrorsTrumpDegradedFeed(t *testing.T) {
	h := NewHealthChecker()
	h.SetFeedHealthy(false)
	h.AddError("excel export failed")

	code, status := getHealth(t, h)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "application/json", statusContentType(t, h))
}

func statusContentType(t *testing.T, h *HealthChecker) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec.Header().Get("Content-Type")
}

func TestHealthChecker_ErrorsCapped(t *testing.T) {
	h := NewHealthChecker()
	for i := 0; i < 50; i++ {
		h.AddError("err")
	}

	_, status := getHealth(t, h)

	assert.Len(t, status.Errors, 20)
}
