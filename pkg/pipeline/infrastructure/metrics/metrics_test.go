package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	config "github.com/karstlab/mofpipe/pkg/pipeline/core/config"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
)

func TestPrometheusRecorderServesRecordedMetrics(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()

	r.RecordGraphStart(ctx, "mof5")
	r.RecordGraphEnd(ctx, "mof5", model.StatusCompleted)
	r.RecordStageSkip(ctx, "ff_relax", "upstream failed")
	r.RecordDuration(ctx, "zeopp_invoke", 120*time.Millisecond, map[string]string{"stage_name": "zeopp_initial"})

	srv := httptest.NewServer(promhttp.HandlerFor(r.GetRegistry(), promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pipeline_graph_status_total")
	assert.Contains(t, string(body), "pipeline_stage_skip_total")
	assert.Contains(t, string(body), "pipeline_operation_duration_seconds")
}

type recordingLifecycle struct {
	hooks []fx.Hook
}

func (l *recordingLifecycle) Append(h fx.Hook) {
	l.hooks = append(l.hooks, h)
}

func TestInstallTracingSkippedWithoutEndpoint(t *testing.T) {
	lc := &recordingLifecycle{}
	installTracing(lc, config.NewConfig())
	assert.Empty(t, lc.hooks)
}

func TestInstallTracingHooksConfiguredEndpoint(t *testing.T) {
	lc := &recordingLifecycle{}
	cfg := config.NewConfig()
	cfg.Mofpipe.System.Tracing.OTLPEndpoint = "collector:4317"
	installTracing(lc, cfg)
	require.Len(t, lc.hooks, 1)
	assert.NotNil(t, lc.hooks[0].OnStart)
	assert.NotNil(t, lc.hooks[0].OnStop)
}
