package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vecdb/vecdb/service"
)

// statusForKind maps a service.Kind to the HTTP status the wire
// protocol's error body is sent with: validation kinds are 4xx,
// storage-layer failures are 5xx, matching spec.md §7's propagation
// policy.
func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindCollectionNotFound, service.KindRecordNotFound:
		return http.StatusNotFound
	case service.KindCollectionAlreadyExists:
		return http.StatusConflict
	case service.KindIOFailure, service.KindCorruptSnapshot:
		return http.StatusInternalServerError
	case service.KindCancelled:
		return 499 // client closed request, matches nginx's convention
	default:
		return http.StatusBadRequest
	}
}

// writeServiceError translates err into the {"error":..., "code":...}
// body spec.md §6 defines, choosing a status from its Kind if err is a
// *service.Error, or IO_FAILURE/500 otherwise.
func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		writeJSON(w, statusForKind(svcErr.Kind), errorResponse{Error: svcErr.Message, Code: string(svcErr.Kind)})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: string(service.KindIOFailure)})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Code: string(service.KindBadRequest)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
