package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanly-erp/quanly/internal/audit"
	jobmetrics "github.com/quanly-erp/quanly/internal/jobs"
)

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
	got  string
}

func (s *stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	s.got = queue
	return s.info, s.err
}

func serveHealth(i QueueInspector) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(i, nil).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return rr
}

func TestHealthReportsAuditQueue(t *testing.T) {
	insp := &stubInspector{info: &asynq.QueueInfo{Queue: QueueAudit, Pending: 4, Failed: 1}}
	rr := serveHealth(insp)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, QueueAudit, insp.got)
	assert.JSONEq(t, `{"queue":"audit","pending":4,"failed":1}`, rr.Body.String())
}

func TestHealthWithoutInspector(t *testing.T) {
	rr := serveHealth(nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"audit","pending":0,"failed":0}`, rr.Body.String())
}

func TestHealthInspectorFailure(t *testing.T) {
	rr := serveHealth(&stubInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServeMuxDispatchesRegisteredHandlers(t *testing.T) {
	var called int
	mux := NewServeMux([]TaskHandler{
		{Type: audit.TaskPrune, Handler: func(context.Context, *asynq.Task) error { called++; return nil }},
		{Type: "", Handler: func(context.Context, *asynq.Task) error { return nil }},
		{Type: "ignored", Handler: nil},
	}, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, mux.ProcessTask(context.Background(), NewAuditPruneTask()))
	assert.Equal(t, 1, called)
	assert.Error(t, mux.ProcessTask(context.Background(), asynq.NewTask("ignored", nil)))
}
