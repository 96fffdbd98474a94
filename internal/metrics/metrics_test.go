package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
)

func TestObserveRecord(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.ObserveRecord(&v93xx.Record{Kind: v93xx.KindRequest, Verdict: v93xx.VerdictValid, Outcome: v93xx.OutcomeContinue})
	m.ObserveRecord(&v93xx.Record{Kind: v93xx.KindResponse, Verdict: v93xx.VerdictMismatch, Outcome: v93xx.OutcomeError})
	m.ObserveRecord(&v93xx.Record{Kind: v93xx.KindNoise, Raw: v93xx.HexBytes{0x01, 0x02}})
	m.ObserveRecord(&v93xx.Record{Kind: v93xx.KindDropped, Err: fmt.Errorf("decode: %w", v93xx.ErrShortBuffer)})
	m.ObserveNoise(3)
	m.ObserveNoise(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("request", "valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("response", "mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedFrames.WithLabelValues("short_buffer")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NoiseBytes))

	var nilMetrics *AppMetrics
	nilMetrics.ObserveRecord(&v93xx.Record{})
	nilMetrics.ObserveNoise(1)
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)
	m.TCPAccepted.Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "tcp_accept_total 1"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
