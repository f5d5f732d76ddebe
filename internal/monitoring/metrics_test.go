package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetricsWithRegistry(reg), reg
}

func TestMetrics_RecordVerdict(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordVerdict("http", true, false)
	m.RecordVerdict("http", false, false)
	m.RecordVerdict("http", false, true)
	m.RecordVerdict("grpc", false, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("http", ResultValid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("http", ResultInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("http", ResultBot)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("grpc", ResultBot)))
}

func TestMetrics_ChallengeAndSessions(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordChallengeGenerated("arithmetic")
	m.RecordChallengeAnswer(true)
	m.RecordChallengeAnswer(false)
	m.RecordChallengeAnswer(false)
	m.RecordSequenceCompleted(4 * time.Second)
	m.RecordSessionEvent("session:submit")
	m.RecordSessionError("challenge:answer", "not_awaiting")
	m.RecordSettingsLoad("redis", errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChallengesGenerated.WithLabelValues("arithmetic")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChallengeAnswers.WithLabelValues("incorrect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SequencesCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionEvents.WithLabelValues("session:submit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettingsLoads.WithLabelValues("redis", "error")))
}

func TestMetricsMiddleware_HTTPUsesRoutePattern(t *testing.T) {
	m, _ := newTestMetrics(t)
	mm := NewMetricsMiddleware(m)

	r := chi.NewRouter()
	r.Use(mm.HTTPMiddleware)
	r.Get("/forms/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/forms/{id}", "418")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsInFlight))
}

func TestMetricsMiddleware_GRPC(t *testing.T) {
	m, _ := newTestMetrics(t)
	interceptor := NewMetricsMiddleware(m).GRPCMetricsInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/formshield.v1.FormShield/Submit"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "nope")
	})
	require.Error(t, err)

	_, err = interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("grpc", info.FullMethod, "InvalidArgument")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("grpc", info.FullMethod, "OK")))
}

func TestPrometheusServer_Handler(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordVerdict("http", true, false)
	ps := NewPrometheusServer(0, "", "", reg, m)

	rec := httptest.NewRecorder()
	ps.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `formshield_verdicts_total{result="valid",surface="http"} 1`))

	rec = httptest.NewRecorder()
	ps.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	ps.updateSystemMetrics()
	assert.Greater(t, testutil.ToFloat64(m.Goroutines), 0.0)
}
