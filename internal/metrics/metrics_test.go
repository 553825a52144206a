package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwipeCounter(t *testing.T) {
	before := testutil.ToFloat64(SwipesTotal.WithLabelValues("like"))
	SwipesTotal.WithLabelValues(Decision(true)).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SwipesTotal.WithLabelValues("like")))
	assert.Equal(t, "pass", Decision(false))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ToastsTotal.WithLabelValues("info", "displayed").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "devmatch_toasts_total"))
}
