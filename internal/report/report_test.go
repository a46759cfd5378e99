// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-harvest/pkg/types"
)

var (
	okRecord = types.ReportRecord{
		URL:        "https://example.com/a.pdf",
		FileName:   "a.pdf",
		Method:     types.MethodDirect,
		HTTPStatus: 200,
		ByteCount:  1234,
		Success:    true,
	}
	failedRecord = types.ReportRecord{
		URL:       "https://example.com/b",
		ErrorText: "direct: blocked by anti-bot protection (HTTP 418) at https://example.com/b",
	}
)

// --- CSV ---

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.csv")

	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(okRecord))

	// Rows are flushed as they are written.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"url,file_name,method,http_status,byte_count,success,error\n"+
			"https://example.com/a.pdf,a.pdf,direct,200,1234,true,\n",
		string(data))

	require.NoError(t, w.Write(failedRecord))
	require.NoError(t, w.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "https://example.com/b,,,,,false,direct: blocked by anti-bot protection (HTTP 418) at https://example.com/b", lines[2])
}

func TestReadCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(okRecord))
	require.NoError(t, w.Write(failedRecord))
	require.NoError(t, w.Close())

	recs, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []types.ReportRecord{okRecord, failedRecord}, recs)
}

func TestReadCSV_BadRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("url,file_name,method,http_status,byte_count,success,error\nx,y,direct,abc,1,true,\n"), 0o644))

	_, err := ReadCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestNewCSVWriter_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewCSVWriter(filepath.Join(blocker, "report.csv"))
	assert.Error(t, err)
}

// --- history store ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(DefaultHistoryPath(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenStore_CreatesDBFile(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(DefaultHistoryPath(dir))
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, HistoryDir, HistoryFile))
	assert.NoError(t, err)
}

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	id, err := s.BeginRun(ctx, "downloads", started)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	require.NoError(t, s.Save(ctx, id, 0, okRecord))
	require.NoError(t, s.Save(ctx, id, 1, failedRecord))

	require.NoError(t, s.FinishRun(ctx, types.RunSummary{
		RunID:      id,
		FinishedAt: started.Add(time.Minute),
		Succeeded:  1,
		Failed:     1,
		Bytes:      1234,
	}))

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, id, r.RunID)
	assert.Equal(t, "downloads", r.DestDir)
	assert.True(t, started.Equal(r.StartedAt))
	assert.True(t, started.Add(time.Minute).Equal(r.FinishedAt))
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, int64(1234), r.Bytes)
	assert.Equal(t, map[types.Method]int{types.MethodDirect: 1}, r.ByMethod)

	recs, err := s.Records(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []types.ReportRecord{okRecord, failedRecord}, recs)

	failed, err := s.FailedURLs(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/b"}, failed)
}

func TestStore_LatestRun(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, err := s.LatestRunID(ctx)
	assert.ErrorIs(t, err, ErrNoRuns)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first, err := s.BeginRun(ctx, "d", base)
	require.NoError(t, err)
	second, err := s.BeginRun(ctx, "d", base.Add(500*time.Millisecond))
	require.NoError(t, err)

	latest, err := s.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	runs, err := s.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].RunID)

	runs, err = s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[1].RunID)
}

func TestStore_FinishUnknownRun(t *testing.T) {
	s := testStore(t)
	err := s.FinishRun(context.Background(), types.RunSummary{RunID: "missing", FinishedAt: time.Now()})
	assert.Error(t, err)
}

func TestStore_SaveRequiresRun(t *testing.T) {
	s := testStore(t)
	err := s.Save(context.Background(), "missing", 0, okRecord)
	assert.Error(t, err, "foreign key enforced")
}

// --- summary ---

func TestSummary_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.yaml")
	want := types.RunSummary{
		RunID:      "run-1",
		DestDir:    "downloads",
		StartedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
		Succeeded:  2,
		Failed:     1,
		ByMethod:   map[types.Method]int{types.MethodDirect: 1, types.MethodBrowserBody: 1},
		Bytes:      4096,
		FailedURLs: []string{"https://example.com/b"},
	}

	require.NoError(t, WriteSummary(path, want))
	got, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, want.ByMethod, got.ByMethod)
	assert.Equal(t, want.FailedURLs, got.FailedURLs)
	assert.Equal(t, want.Bytes, got.Bytes)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestReadSummary_Missing(t *testing.T) {
	_, err := ReadSummary(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
