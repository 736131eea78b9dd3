// Package api implements the thin JSON-over-HTTP surface: one handler
// per endpoint, each doing exactly decode request -> call service ->
// encode response, with error translation centralized in errors.go.
// This mirrors tanushdev-DocuMind's internal/api handler shape (a
// Handler struct holding the index dependency, sendJSON for responses)
// generalized from one fixed index to vecdb's named collections.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vecdb/vecdb/metric"
	"github.com/vecdb/vecdb/service"
)

const (
	defaultTopK   = 5
	defaultMetric = string(metric.Cosine)
)

// Handler holds the service every route dispatches into.
type Handler struct {
	svc *service.Service
}

// NewHandler builds a Handler backed by svc.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func collectionParam(r *http.Request) string {
	if name := r.URL.Query().Get("collection"); name != "" {
		return name
	}
	return service.DefaultCollectionName
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// HandleStats handles GET /stats?collection=<name>.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), collectionParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Dimension: stats.Dimension, NumVectors: stats.NumVectors})
}

// HandleListCollections handles GET /collections.
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.ListCollections(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]collectionSummary, len(all))
	for i, c := range all {
		out[i] = collectionSummary{
			Name:       c.Name,
			Dimension:  c.Dimension,
			NumVectors: c.NumVectors,
			CreatedAt:  c.CreatedAt.Unix(),
		}
	}
	writeJSON(w, http.StatusOK, listCollectionsResponse{Collections: out})
}

// HandleCreateCollection handles POST /collections.
func (h *Handler) HandleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.svc.CreateCollection(r.Context(), req.Name, req.Dimension); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createCollectionResponse{Status: "created", Dimension: req.Dimension})
}

// HandleDropCollection handles DELETE /collections/{name}.
func (h *Handler) HandleDropCollection(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.svc.DropCollection(r.Context(), name); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, droppedResponse{Status: "dropped"})
}

// HandleUpsert handles POST /vectors?collection=<name>.
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	collectionName := collectionParam(r)
	if err := h.svc.Upsert(r.Context(), collectionName, req.ID, req.Vector, req.Metadata); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, upsertResponse{Status: "ok", ID: req.ID, Dimension: len(req.Vector)})
}

// HandleBulkUpsert handles POST /vectors/bulk?collection=<name>. Every
// item is attempted independently; a failure on one item never aborts
// the rest, matching the {inserted, failed:[...]} response shape.
func (h *Handler) HandleBulkUpsert(w http.ResponseWriter, r *http.Request) {
	var req bulkUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	collectionName := collectionParam(r)

	var inserted int
	var failed []bulkFailure
	for _, item := range req.Items {
		if err := h.svc.Upsert(r.Context(), collectionName, item.ID, item.Vector, item.Metadata); err != nil {
			failed = append(failed, bulkFailure{ID: item.ID, Reason: err.Error()})
			continue
		}
		inserted++
	}
	writeJSON(w, http.StatusOK, bulkUpsertResponse{Inserted: inserted, Failed: failed})
}

// HandleGetVector handles GET /vectors/{id}?collection=<name>.
func (h *Handler) HandleGetVector(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.svc.Get(r.Context(), collectionParam(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{ID: rec.ID, Vector: rec.Vector, Metadata: rec.Metadata})
}

// HandleDeleteVector handles DELETE /vectors/{id}?collection=<name>.
func (h *Handler) HandleDeleteVector(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.svc.Delete(r.Context(), collectionParam(r), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, droppedResponse{Status: "deleted"})
}

// HandleSearch handles POST /search?collection=<name>.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}
	if req.Metric == "" {
		req.Metric = defaultMetric
	}

	results, err := h.svc.Search(r.Context(), collectionParam(r), req.Vector, req.TopK, metric.Name(req.Metric), req.Filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]searchResultDTO, len(results))
	for i, res := range results {
		out[i] = searchResultDTO{ID: res.ID, Score: res.Score, Metadata: res.Metadata}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: out})
}

// HandleSave handles POST /save.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	seq, err := h.svc.SaveSnapshot(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Sequence: seq})
}

// HandleLoad handles POST /load.
func (h *Handler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	seq, err := h.svc.LoadSnapshot(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{RestoredSequence: seq})
}

// HandleClear handles DELETE /clear.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, droppedResponse{Status: "cleared"})
}
