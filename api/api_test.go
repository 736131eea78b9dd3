package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdb/vecdb/service"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	svc, err := service.Open(context.Background(), filepath.Join(dir, "snapshot.bin"), filepath.Join(dir, "wal.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewHandler(svc), logger, prometheus.NewRegistry())
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestCreateUpsertSearchLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/collections", createCollectionRequest{Name: "docs", Dimension: 3})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/vectors?collection=docs", upsertRequest{ID: "a", Vector: []float32{1, 0, 0}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/search?collection=docs", searchRequest{Vector: []float32{1, 0, 0}, TopK: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	var results searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results.Results, 1)
	assert.Equal(t, "a", results.Results[0].ID)
	assert.InDelta(t, 0.0, results.Results[0].Score, 1e-6)
}

func TestSearchDefaultsTopKAndMetric(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/collections", createCollectionRequest{Name: "docs", Dimension: 2})
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		doJSON(t, router, http.MethodPost, "/vectors?collection=docs", upsertRequest{ID: id, Vector: []float32{1, 0}})
	}

	rec := doJSON(t, router, http.MethodPost, "/search?collection=docs", searchRequest{Vector: []float32{1, 0}})
	require.Equal(t, http.StatusOK, rec.Code)

	var results searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results.Results, defaultTopK)
}

func TestCollectionNotFoundReturns404WithCode(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/stats?collection=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "COLLECTION_NOT_FOUND", body.Code)
}

func TestDimensionMismatchReturns400(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/collections", createCollectionRequest{Name: "docs", Dimension: 3})

	rec := doJSON(t, router, http.MethodPost, "/vectors?collection=docs", upsertRequest{ID: "a", Vector: []float32{1, 2}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DIMENSION_MISMATCH", body.Code)
}

func TestDefaultCollectionFallback(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/collections", createCollectionRequest{Name: "default", Dimension: 2})

	rec := doJSON(t, router, http.MethodPost, "/vectors", upsertRequest{ID: "a", Vector: []float32{1, 1}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/vectors/a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBulkUpsertReportsPartialFailure(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/collections", createCollectionRequest{Name: "docs", Dimension: 2})

	rec := doJSON(t, router, http.MethodPost, "/vectors/bulk?collection=docs", bulkUpsertRequest{
		Items: []upsertRequest{
			{ID: "a", Vector: []float32{1, 0}},
			{ID: "b", Vector: []float32{1, 0, 0}}, // wrong dimension
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body bulkUpsertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Inserted)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, "b", body.Failed[0].ID)
}

func TestSaveAndLoad(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/collections", createCollectionRequest{Name: "docs", Dimension: 1})
	doJSON(t, router, http.MethodPost, "/vectors?collection=docs", upsertRequest{ID: "a", Vector: []float32{1}})

	rec := doJSON(t, router, http.MethodPost, "/save", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var saveBody snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saveBody))
	assert.Equal(t, uint64(2), saveBody.Sequence)

	rec = doJSON(t, router, http.MethodPost, "/load", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loadBody loadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loadBody))
	assert.Equal(t, saveBody.Sequence, loadBody.RestoredSequence)
}

func TestClear(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/collections", createCollectionRequest{Name: "docs", Dimension: 1})

	req := httptest.NewRequest(http.MethodDelete, "/clear", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/collections", nil)
	var list listCollectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Collections)
}

func TestMetricsEndpointExposesPrometheusFormat(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
