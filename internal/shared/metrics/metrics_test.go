package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"agents-workflow/internal/shared/storage"
)

func TestObserveDocumentOp(t *testing.T) {
	m := NewMetrics("test", nil)

	m.ObserveDocumentOp("memory", "messages", "get", time.Millisecond, nil)
	m.ObserveDocumentOp("memory", "messages", "get", time.Millisecond, storage.ErrNotFound)
	m.ObserveDocumentOp("memory", "messages", "get", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentOpsTotal.WithLabelValues("memory", "messages", "get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentOpsTotal.WithLabelValues("memory", "messages", "get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentOpsTotal.WithLabelValues("memory", "messages", "get", "error")))
}

func TestRecordReconstruction(t *testing.T) {
	m := NewMetrics("test", nil)
	m.RecordReconstruction("ChatOutput", false)
	m.RecordReconstruction("", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutputReconstructions.WithLabelValues("ChatOutput", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutputReconstructions.WithLabelValues("none", "fallback")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics("agents_workflow", nil)
	m.RecordTaskResponse("complete")
	m.RecordRenderCache("hit")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `agents_workflow_task_responses_total{status="complete"} 1`), body)
	assert.True(t, strings.Contains(body, `agents_workflow_render_cache_total{result="hit"} 1`), body)
}
