package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fraud-ledger/internal/application/dto"
	fraudapp "fraud-ledger/internal/application/fraud"
	"fraud-ledger/internal/domain/projection"
)

// Rebuilder replays the whole log into one projection
type Rebuilder interface {
	RebuildProjection(ctx context.Context, name string) (projection.Result, error)
}

// OperationsHandler handles projection and model maintenance requests
type OperationsHandler struct {
	rebuilder Rebuilder
	train     *fraudapp.TrainModelUseCase
	rescore   *fraudapp.RescoreUseCase
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(rebuilder Rebuilder, train *fraudapp.TrainModelUseCase, rescore *fraudapp.RescoreUseCase) *OperationsHandler {
	return &OperationsHandler{
		rebuilder: rebuilder,
		train:     train,
		rescore:   rescore,
	}
}

// RebuildProjection handles POST /api/v1/projections/{name}/rebuild
func (h *OperationsHandler) RebuildProjection(w http.ResponseWriter, r *http.Request) {
	res, err := h.rebuilder.RebuildProjection(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProjectionResponse{
		Projection: res.Projection,
		Applied:    res.Applied,
		Skipped:    res.Skipped,
		Checkpoint: res.Checkpoint,
	})
}

// TrainModel handles POST /api/v1/models/train
func (h *OperationsHandler) TrainModel(w http.ResponseWriter, r *http.Request) {
	model, err := h.train.Execute(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model)
}

// Rescore handles POST /api/v1/models/rescore
func (h *OperationsHandler) Rescore(w http.ResponseWriter, r *http.Request) {
	summary, err := h.rescore.Execute(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
