package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ideaspaper/sheets-reader-mcp/internal/dispatch"
)

func TestRecorder_CountsByOutcome(t *testing.T) {
	r := NewRecorder()

	r.ObserveInvocation("read_sheet", dispatch.OutcomeOK, 20*time.Millisecond)
	r.ObserveInvocation("read_sheet", dispatch.OutcomeOK, 30*time.Millisecond)
	r.ObserveInvocation("read_sheet", dispatch.OutcomeUpstreamError, time.Second)
	r.ObserveInvocation(dispatch.UnknownToolLabel, dispatch.OutcomeUnknownTool, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Calls().WithLabelValues("read_sheet", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Calls().WithLabelValues("read_sheet", "upstream_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Calls().WithLabelValues("unknown", "unknown_tool")))
	assert.Equal(t, 3, testutil.CollectAndCount(r.Calls()))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveInvocation("get_sheet_info", dispatch.OutcomeOK, time.Millisecond)

	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `sheets_mcp_tool_calls_total{outcome="ok",tool="get_sheet_info"} 1`)
	assert.Contains(t, body, "sheets_mcp_tool_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}
