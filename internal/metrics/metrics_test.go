// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-harvest/pkg/types"
)

func failedOutcome(stages ...types.Stage) types.Outcome {
	f := &types.DownloadFailure{URL: "https://x"}
	for _, s := range stages {
		f.Add(s, errors.New("boom"))
	}
	return types.Outcome{URL: "https://x", Failure: f}
}

func TestObserve(t *testing.T) {
	m := New()

	m.Observe(types.Outcome{Result: &types.DownloadResult{Method: types.MethodDirect, ByteCount: 2048}}, time.Second)
	m.Observe(types.Outcome{Result: &types.DownloadResult{Method: types.MethodDirect, ByteCount: 4096}}, time.Second)
	m.Observe(types.Outcome{Result: &types.DownloadResult{Method: types.MethodBrowserBody, ByteCount: 10}}, 3*time.Second)
	m.Observe(failedOutcome(types.StageDirectFetch, types.StageBrowserFallback), 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.urlsTotal.WithLabelValues("success", "direct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.urlsTotal.WithLabelValues("success", "browser-body")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.urlsTotal.WithLabelValues("failure", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageFailures.WithLabelValues("direct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageFailures.WithLabelValues("browser")))

	n, err := testutil.GatherAndCount(m.registry,
		"pdf_harvest_urls_total", "pdf_harvest_stage_failures_total", "pdf_harvest_file_size_bytes")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Observe(failedOutcome(types.StageDirectFetch), time.Second)
	m.Finish(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "harvest.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `pdf_harvest_urls_total{method="none",result="failure"} 1`)
	assert.Contains(t, text, `pdf_harvest_stage_failures_total{stage="direct"} 1`)
	assert.Contains(t, text, "pdf_harvest_last_run_timestamp_seconds 1.7e+09")
}

func TestWriteTextfile_BadPath(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.Error(t, err)
}
