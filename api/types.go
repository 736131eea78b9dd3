package api

// The wire types below are deliberately separate from the domain types
// in core/collection/knn: the JSON shape is a contract with external
// callers and must not drift just because an internal field is renamed,
// matching the DTO split DocuMind's pkg/types keeps from its index
// package.

type healthResponse struct {
	Status string `json:"status"`
}

type statsResponse struct {
	Dimension  int `json:"dim"`
	NumVectors int `json:"num_vectors"`
}

type collectionSummary struct {
	Name       string `json:"name"`
	Dimension  int    `json:"dimension"`
	NumVectors int    `json:"num_vectors"`
	CreatedAt  int64  `json:"created_at"`
}

type listCollectionsResponse struct {
	Collections []collectionSummary `json:"collections"`
}

type createCollectionRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

type createCollectionResponse struct {
	Status    string `json:"status"`
	Dimension int    `json:"dimension"`
}

type droppedResponse struct {
	Status string `json:"status"`
}

type upsertRequest struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Dimension int    `json:"dimension"`
}

type bulkUpsertRequest struct {
	Items []upsertRequest `json:"items"`
}

type bulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type bulkUpsertResponse struct {
	Inserted int           `json:"inserted"`
	Failed   []bulkFailure `json:"failed"`
}

type recordResponse struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type searchRequest struct {
	Vector   []float32      `json:"vector"`
	TopK     int            `json:"top_k"`
	Metric   string         `json:"metric"`
	Filter   map[string]any `json:"filter,omitempty"`
}

type searchResultDTO struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type searchResponse struct {
	Results []searchResultDTO `json:"results"`
}

type snapshotResponse struct {
	Sequence uint64 `json:"sequence"`
}

type loadResponse struct {
	RestoredSequence uint64 `json:"restored_sequence"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
