package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestMergeResultsExportedBeforeFirstMerge(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, result := range []string{"merged", "already_merged", "failed"} {
		assert.Contains(t, body, `chunkd_merges_total{result="`+result+`"}`)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	Merges.WithLabelValues("merged").Inc()
	before := testutil.ToFloat64(UploadsCompleted)
	UploadsCompleted.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(UploadsCompleted))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	b, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "chunkd_merges_total")
	assert.Contains(t, string(b), "chunkd_uploads_completed_total")
}
